package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/voterprime/catmatch/internal/catalog"
	"github.com/voterprime/catmatch/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a category file",
		Long: `Parse a category file and report skipped entries and counts per type.
The command fails when any entry is invalid.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.categoriesFile
			if len(args) == 1 {
				path = args[0]
			}

			core, logs := observer.New(zap.WarnLevel)
			cats, err := catalog.LoadFile(path, zap.New(core))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			byType := make(map[domain.CategoryType]int)
			for _, c := range cats {
				byType[c.Type]++
			}
			types := make([]string, 0, len(byType))
			for t := range byType {
				types = append(types, string(t))
			}
			sort.Strings(types)

			fmt.Fprintf(out, "%s: %d valid categories\n", path, len(cats))
			for _, t := range types {
				fmt.Fprintf(out, "  %-20s %d\n", t, byType[domain.CategoryType(t)])
			}

			skipped := logs.All()
			for _, e := range skipped {
				fields := e.ContextMap()
				fmt.Fprintf(out, "  skipped entry %v (%v): %v\n", fields["index"], fields["name"], fields["error"])
			}
			if len(skipped) > 0 {
				return fmt.Errorf("%d invalid entries", len(skipped))
			}
			return nil
		},
	}
}
