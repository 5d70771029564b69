// Package scan implements the scan command for extracting figure references
// from a local directory tree.
package scan

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/figpack/figscan/cmd/common"
	"github.com/figpack/figscan/internal/domain"
	"github.com/figpack/figscan/internal/scanner"
)

// Command returns the scan command for use in the root command.
func Command() *cobra.Command {
	var repoName string

	cmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "Scan a local directory for figure references",
		Long: `Scan walks a local directory tree, extracts figpack figure URLs from
its Markdown files, and prints the resulting records as JSON on stdout.
Useful for checking a working copy before a full run.

The --repo flag sets the repository name recorded in the output; it defaults
to the directory name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args[0], repoName)
		},
	}

	cmd.Flags().StringVar(&repoName, "repo", "", "Repository name to record in output (owner/name)")

	return cmd
}

// runScan executes the scan command against one directory.
func runScan(cmd *cobra.Command, dir, repoName string) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if repoName == "" {
		repoName = info.Name()
	}

	s := scanner.NewScanner(deps.Config.GetScanConfig(), deps.Logger)
	refs, err := s.Scan(cmd.Context(), repoName, dir)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if refs == nil {
		refs = []domain.Reference{}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(refs); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	deps.Logger.Info("scan complete", "dir", dir, "records", len(refs))
	return nil
}
