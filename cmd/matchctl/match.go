package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/voterprime/catmatch/internal/catalog"
	"github.com/voterprime/catmatch/internal/config"
	"github.com/voterprime/catmatch/internal/domain"
	"github.com/voterprime/catmatch/internal/embedding"
	"github.com/voterprime/catmatch/internal/service"
	"go.uber.org/zap"
)

type matchOptions struct {
	topK     int
	types    []string
	rejected []int
	explain  bool
}

func newMatchCmd(root *rootOptions) *cobra.Command {
	opts := &matchOptions{}
	cmd := &cobra.Command{
		Use:   "match <text>",
		Short: "Rank categories for a piece of text",
		Long: `Rank categories for a piece of text.

Examples:
  # Offline, with the deterministic mock embedder
  matchctl match "I care about climate change and clean energy"

  # Only policies, top 3, with OpenAI embeddings
  matchctl match --provider openai --types policy --top-k 3 "lower my taxes"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, root, opts, strings.Join(args, " "))
		},
	}
	addMatchFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "show the score breakdown")
	return cmd
}

func newRefineCmd(root *rootOptions) *cobra.Command {
	opts := &matchOptions{}
	cmd := &cobra.Command{
		Use:   "refine <text>",
		Short: "Re-rank after rejecting categories",
		Long: `Re-rank categories after the user rejected some of them. Rejected
categories are excluded and similar ones are demoted.

Example:
  matchctl refine --reject 1,7 "I care about the environment"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.rejected) == 0 {
				return fmt.Errorf("--reject is required")
			}
			return runMatch(cmd, root, opts, strings.Join(args, " "))
		},
	}
	addMatchFlags(cmd, opts)
	cmd.Flags().IntSliceVar(&opts.rejected, "reject", nil, "rejected category ids")
	opts.explain = true
	return cmd
}

func addMatchFlags(cmd *cobra.Command, opts *matchOptions) {
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 5, "number of matches to return (1-20)")
	cmd.Flags().StringSliceVar(&opts.types, "types", nil, "category types to include")
}

func runMatch(cmd *cobra.Command, root *rootOptions, opts *matchOptions, input string) error {
	if opts.topK < 1 || opts.topK > 20 {
		return fmt.Errorf("--top-k must be between 1 and 20")
	}
	types, err := domain.ParseCategoryTypes(opts.types)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	matcher, err := loadMatcher(ctx, root)
	if err != nil {
		return err
	}

	res, err := matcher.Match(ctx, service.MatchRequest{
		Input:       input,
		Types:       types,
		TopK:        opts.topK,
		RejectedIDs: opts.rejected,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if root.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Matches)
	}
	printMatches(out, res.Matches, opts.explain)
	return nil
}

func loadMatcher(ctx context.Context, root *rootOptions) (*service.MatcherService, error) {
	logger := zap.NewNop()

	cats, err := catalog.LoadFile(root.categoriesFile, logger)
	if err != nil {
		return nil, err
	}

	apiKey := ""
	if root.provider == embedding.ProviderOpenAI {
		apiKey = config.OpenAIAPIKey()
	}
	emb, err := embedding.NewClient(root.provider, apiKey, root.model)
	if err != nil {
		return nil, err
	}

	store := catalog.New(emb, logger, nil)
	if err := store.Load(ctx, cats); err != nil {
		return nil, err
	}
	return service.NewMatcherService(store, emb, service.NewMatchScorer(), logger, nil)
}

func printMatches(w io.Writer, matches []domain.CategoryMatch, explain bool) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "no matching categories")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if explain {
		fmt.Fprintln(tw, "RANK\tID\tNAME\tTYPE\tCONFIDENCE\tSIMILARITY\tKEYWORDS\tHISTORY\tPENALTY")
	} else {
		fmt.Fprintln(tw, "RANK\tID\tNAME\tTYPE\tCONFIDENCE\tSIMILARITY")
	}
	for i, m := range matches {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%.3f\t%.3f", i+1, m.CategoryID, m.CategoryName, m.CategoryType,
			m.ConfidenceScore, m.SimilarityScore)
		if explain && m.Breakdown != nil {
			fmt.Fprintf(tw, "\t%.2f\t%.2f\t%.2f", m.Breakdown.KeywordBonus, m.Breakdown.SuccessRate, m.Breakdown.Penalty)
		}
		fmt.Fprintln(tw)
	}
	_ = tw.Flush()
}
