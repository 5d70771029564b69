// Package gitfetch obtains local snapshots of candidate repositories via
// shallow git clones. Fetch failures are contained: a deleted or private
// repository becomes a skipped repository, never a run-fatal error.
package gitfetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/figpack/figscan/internal/config"
	"github.com/figpack/figscan/internal/domain"
	"github.com/figpack/figscan/internal/logger"
)

// cloneURLFormat is the anonymous HTTPS clone URL for a public repository.
const cloneURLFormat = "https://github.com/%s.git"

// Common errors returned by the gitfetch package.
var (
	// ErrGitNotFound is returned when the git binary is not in PATH.
	ErrGitNotFound = errors.New("git binary not found in PATH")

	// ErrCloneFailed is returned when a repository could not be cloned.
	ErrCloneFailed = errors.New("clone failed")
)

// runGitCommand executes git with the given arguments. Injectable in tests.
var runGitCommand = func(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, truncate(strings.TrimSpace(string(out))))
	}
	return nil
}

// maxGitOutput limits how much git stderr is carried in errors.
const maxGitOutput = 300

func truncate(s string) string {
	if len(s) > maxGitOutput {
		return s[:maxGitOutput]
	}
	return s
}

// EnsureGitAvailable verifies the git binary is present. Called once at
// startup; a missing git is fatal for the whole run.
func EnsureGitAvailable() error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("%w: %w", ErrGitNotFound, err)
	}
	return nil
}

// Fetcher clones candidate repositories into a scratch directory.
type Fetcher struct {
	cfg    *config.FetchConfig
	logger logger.Interface
}

// NewFetcher creates a new fetcher.
func NewFetcher(cfg *config.FetchConfig, log logger.Interface) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		logger: log.WithComponent("gitfetch"),
	}
}

// Fetch produces a local snapshot of the candidate's default branch and
// returns its path. Each candidate gets a distinct subdirectory keyed by its
// identifier, so concurrent fetches never write into the same path. An
// existing snapshot is reused without re-cloning.
func (f *Fetcher) Fetch(ctx context.Context, cand domain.Candidate) (string, error) {
	target := filepath.Join(f.cfg.Workdir, cand.DirName())

	if _, err := os.Stat(target); err == nil {
		f.logger.Debug("snapshot exists, skipping clone", "repo", cand.FullName())
		return target, nil
	}

	if err := os.MkdirAll(f.cfg.Workdir, 0o755); err != nil {
		return "", fmt.Errorf("create workdir: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	// Shallow, single-branch clone pulls the default branch by default.
	url := fmt.Sprintf(cloneURLFormat, cand.FullName())
	err := runGitCommand(cloneCtx,
		"clone",
		"--depth=1",
		"--no-tags",
		"--single-branch",
		url,
		target,
	)
	if err != nil {
		// A half-written clone must not be mistaken for a snapshot on
		// a later run.
		_ = os.RemoveAll(target)
		return "", fmt.Errorf("%w: %s: %w", ErrCloneFailed, cand.FullName(), err)
	}

	f.logger.Debug("cloned repository", "repo", cand.FullName(), "path", target)
	return target, nil
}
