// Package run implements the run command, which executes one complete
// indexing run: search, fetch, scan, and artifact write.
package run

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/figpack/figscan/cmd/common"
	"github.com/figpack/figscan/internal/gitfetch"
	"github.com/figpack/figscan/internal/pipeline"
	"github.com/figpack/figscan/internal/scanner"
	"github.com/figpack/figscan/internal/search"
)

// timeRounding is the display granularity for run durations.
const timeRounding = 10 * time.Millisecond

// Command returns the run command for use in the root command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one complete indexing pass",
		Long: `Run searches GitHub code search for Markdown files referencing
https://figures.figpack.org/ URLs, clones the matching repositories into a
scratch directory, scans their Markdown files, and writes the consolidated
JSON index.

The run exits 0 even when individual repositories fail to fetch or scan;
only a failed search phase or a failed artifact write is fatal.`,
		RunE: runPipeline,
	}

	cmd.Flags().String("out", "", "Output JSON file path")
	cmd.Flags().String("workdir", "", "Working directory for repository clones")
	cmd.Flags().Int("max-pages", 0, "Maximum search pages to request")
	cmd.Flags().Int("per-page", 0, "Search results per page (max 100)")
	cmd.Flags().Int("workers", 0, "Worker pool size for fetching and scanning")

	bindings := map[string]string{
		"output.path":       "out",
		"fetch.workdir":     "workdir",
		"search.max_pages":  "max-pages",
		"search.per_page":   "per-page",
		"workers.pool_size": "workers",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			common.PrintErrorf("Error binding %s flag: %v", flag, err)
			os.Exit(1)
		}
	}

	return cmd
}

// runPipeline executes the run command.
func runPipeline(cmd *cobra.Command, _ []string) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	if gitErr := gitfetch.EnsureGitAvailable(); gitErr != nil {
		return gitErr
	}

	// An interrupt abandons in-flight clones; the published artifact is
	// only replaced by a completed run.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(
		deps.Config,
		deps.Logger,
		search.NewClient(deps.Config.GetSearchConfig(), deps.Logger),
		gitfetch.NewFetcher(deps.Config.GetFetchConfig(), deps.Logger),
		scanner.NewScanner(deps.Config.GetScanConfig(), deps.Logger),
	)

	summary, err := p.Run(ctx)
	if err != nil {
		return err
	}

	renderSummary(summary)
	return nil
}

// renderSummary prints the run summary as a table.
func renderSummary(summary *pipeline.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Candidates", "Scanned", "Skipped", "Records", "Duration", "Output"})
	t.AppendRow(table.Row{
		summary.Candidates,
		summary.Scanned,
		len(summary.Skipped),
		summary.Records,
		summary.Duration.Round(timeRounding).String(),
		summary.OutputPath,
	})
	t.Render()

	if len(summary.Skipped) == 0 {
		return
	}

	pipeline.SortSkipped(summary.Skipped)
	skippedTable := table.NewWriter()
	skippedTable.SetOutputMirror(os.Stdout)
	skippedTable.AppendHeader(table.Row{"Skipped Repository", "Reason"})
	for _, s := range summary.Skipped {
		skippedTable.AppendRow(table.Row{s.Repo, s.Reason})
	}
	skippedTable.Render()
}
