package gitfetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/figpack/figscan/internal/config"
	"github.com/figpack/figscan/internal/domain"
	"github.com/figpack/figscan/internal/logger"
)

func testFetcher(workdir string) *Fetcher {
	return NewFetcher(&config.FetchConfig{
		Workdir: workdir,
		Timeout: 30 * time.Second,
	}, logger.NewNoOp())
}

// Tests below swap runGitCommand, so they must not run in parallel.

func TestFetcher_Fetch_Clones(t *testing.T) {
	orig := runGitCommand
	t.Cleanup(func() { runGitCommand = orig })

	var gotArgs []string
	runGitCommand = func(ctx context.Context, args ...string) error {
		gotArgs = args
		// The final argument is the clone target.
		return os.MkdirAll(args[len(args)-1], 0o755)
	}

	workdir := t.TempDir()
	f := testFetcher(workdir)

	cand := domain.Candidate{Owner: "acme", Name: "widgets"}
	path, err := f.Fetch(context.Background(), cand)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(workdir, "acme__widgets"), path)

	require.Contains(t, gotArgs, "clone")
	require.Contains(t, gotArgs, "--depth=1")
	require.Contains(t, gotArgs, "--no-tags")
	require.Contains(t, gotArgs, "--single-branch")
	require.Contains(t, gotArgs, "https://github.com/acme/widgets.git")
}

func TestFetcher_Fetch_ReusesExistingSnapshot(t *testing.T) {
	orig := runGitCommand
	t.Cleanup(func() { runGitCommand = orig })

	var calls int
	runGitCommand = func(ctx context.Context, args ...string) error {
		calls++
		return os.MkdirAll(args[len(args)-1], 0o755)
	}

	workdir := t.TempDir()
	f := testFetcher(workdir)
	cand := domain.Candidate{Owner: "acme", Name: "widgets"}

	first, err := f.Fetch(context.Background(), cand)
	require.NoError(t, err)

	second, err := f.Fetch(context.Background(), cand)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, calls)
}

func TestFetcher_Fetch_FailureIsContained(t *testing.T) {
	orig := runGitCommand
	t.Cleanup(func() { runGitCommand = orig })

	runGitCommand = func(ctx context.Context, args ...string) error {
		// Simulate a partial clone before failure.
		_ = os.MkdirAll(args[len(args)-1], 0o755)
		return errors.New("remote: Repository not found")
	}

	workdir := t.TempDir()
	f := testFetcher(workdir)
	cand := domain.Candidate{Owner: "gone", Name: "deleted"}

	_, err := f.Fetch(context.Background(), cand)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCloneFailed)

	// The half-written target must not be mistaken for a snapshot later.
	_, statErr := os.Stat(filepath.Join(workdir, "gone__deleted"))
	require.True(t, os.IsNotExist(statErr))
}

func TestFetcher_Fetch_DistinctTargetsPerCandidate(t *testing.T) {
	orig := runGitCommand
	t.Cleanup(func() { runGitCommand = orig })

	runGitCommand = func(ctx context.Context, args ...string) error {
		return os.MkdirAll(args[len(args)-1], 0o755)
	}

	workdir := t.TempDir()
	f := testFetcher(workdir)

	a, err := f.Fetch(context.Background(), domain.Candidate{Owner: "acme", Name: "widgets"})
	require.NoError(t, err)
	b, err := f.Fetch(context.Background(), domain.Candidate{Owner: "other", Name: "widgets"})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestTruncate(t *testing.T) {
	long := make([]byte, maxGitOutput*2)
	for i := range long {
		long[i] = 'x'
	}
	require.Len(t, truncate(string(long)), maxGitOutput)
	require.Equal(t, "short", truncate("short"))
}
