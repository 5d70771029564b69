// Package schedule implements the schedule command, which runs the indexing
// pipeline on a cron expression until interrupted.
package schedule

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/figpack/figscan/cmd/common"
	"github.com/figpack/figscan/internal/gitfetch"
	"github.com/figpack/figscan/internal/pipeline"
	"github.com/figpack/figscan/internal/scanner"
	"github.com/figpack/figscan/internal/search"
)

// DefaultCronSpec runs one indexing pass daily at 06:00.
const DefaultCronSpec = "0 6 * * *"

// Command returns the schedule command for use in the root command.
func Command() *cobra.Command {
	var cronSpec string
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the indexing pipeline on a cron schedule",
		Long: `Schedule keeps the process alive and executes one complete indexing
run on the given cron expression. A run that fails leaves the previously
published artifact in place; the next scheduled run tries again.

Examples:
  # Daily at 06:00
  figscan schedule

  # Every six hours, with an immediate first run
  figscan schedule --cron "0 */6 * * *" --run-on-start
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, cronSpec, runOnStart)
		},
	}

	cmd.Flags().StringVar(&cronSpec, "cron", DefaultCronSpec, "Cron expression for scheduled runs")
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "Execute one run immediately on startup")

	return cmd
}

// runSchedule executes the schedule command.
func runSchedule(cmd *cobra.Command, cronSpec string, runOnStart bool) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	if gitErr := gitfetch.EnsureGitAvailable(); gitErr != nil {
		return gitErr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := deps.Logger.WithComponent("schedule")

	p := pipeline.New(
		deps.Config,
		deps.Logger,
		search.NewClient(deps.Config.GetSearchConfig(), deps.Logger),
		gitfetch.NewFetcher(deps.Config.GetFetchConfig(), deps.Logger),
		scanner.NewScanner(deps.Config.GetScanConfig(), deps.Logger),
	)

	runOnce := func() {
		summary, runErr := p.Run(ctx)
		if runErr != nil {
			// A failed run never disturbs the published artifact;
			// the next tick retries from scratch.
			log.Error("scheduled run failed", "error", runErr)
			return
		}
		log.Info("scheduled run complete",
			"records", summary.Records,
			"scanned", summary.Scanned,
			"skipped", len(summary.Skipped),
		)
	}

	scheduler := cron.New()
	if _, addErr := scheduler.AddFunc(cronSpec, runOnce); addErr != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronSpec, addErr)
	}

	if runOnStart {
		runOnce()
		if ctx.Err() != nil {
			return nil
		}
	}

	log.Info("scheduler started", "cron", cronSpec)
	scheduler.Start()

	<-ctx.Done()

	log.Info("shutdown signal received")
	stopCtx := scheduler.Stop()
	// Wait for an in-flight scheduled run to wind down.
	<-stopCtx.Done()

	return nil
}
