// Package search implements the search command for listing candidate
// repositories without fetching them.
package search

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/figpack/figscan/cmd/common"
	searchclient "github.com/figpack/figscan/internal/search"
)

// Command returns the search command for use in the root command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "List candidate repositories from code search",
		Long: `Search runs only the code-search phase and prints the distinct
repositories whose Markdown files reference figpack figure URLs. Useful for
previewing what a full run would fetch.

Examples:
  # Preview candidates with the default query
  figscan search

  # Limit to two pages of fifty results
  figscan search --max-pages 2 --per-page 50
`,
		RunE: runSearch,
	}

	cmd.Flags().Int("max-pages", 0, "Maximum search pages to request")
	cmd.Flags().Int("per-page", 0, "Search results per page (max 100)")

	if err := viper.BindPFlag("search.max_pages", cmd.Flags().Lookup("max-pages")); err != nil {
		common.PrintErrorf("Error binding max-pages flag: %v", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("search.per_page", cmd.Flags().Lookup("per-page")); err != nil {
		common.PrintErrorf("Error binding per-page flag: %v", err)
		os.Exit(1)
	}

	return cmd
}

// runSearch executes the search command.
func runSearch(cmd *cobra.Command, _ []string) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	client := searchclient.NewClient(deps.Config.GetSearchConfig(), deps.Logger)
	candidates, err := client.FindCandidates(cmd.Context())
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		fmt.Println("No candidate repositories found.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Repository"})
	for i, cand := range candidates {
		t.AppendRow(table.Row{i + 1, cand.FullName()})
	}
	t.Render()

	return nil
}
