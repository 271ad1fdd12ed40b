// Command matchctl runs the category matcher locally and talks to a running
// catmatch server.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/voterprime/catmatch/internal/buildconfig"
	"github.com/voterprime/catmatch/internal/config"
)

func main() {
	_ = config.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	categoriesFile string
	provider       string
	model          string
	jsonOutput     bool
	serverURL      string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "matchctl",
		Short: "Match text against political categories",
		Long: `matchctl loads a category file, embeds it and ranks categories for a
piece of text exactly like the server does. It can also validate category
files and check a running server.`,
		Version:       buildconfig.Version(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.categoriesFile, "categories", defaultCategoriesFile(), "YAML category file")
	pf.StringVar(&opts.provider, "provider", "mock", "embedding provider (openai, mock)")
	pf.StringVar(&opts.model, "model", config.EmbeddingModel(), "embedding model override")
	pf.BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of a table")
	pf.StringVar(&opts.serverURL, "server", "http://localhost:8080", "catmatch server URL")

	cmd.AddCommand(newMatchCmd(opts))
	cmd.AddCommand(newRefineCmd(opts))
	cmd.AddCommand(newValidateCmd(opts))
	cmd.AddCommand(newHealthCmd(opts))
	return cmd
}

func defaultCategoriesFile() string {
	if f := config.CategoriesFile(); f != "" {
		return f
	}
	return "data/categories.yaml"
}
