package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/figpack/figscan/internal/config"
	"github.com/figpack/figscan/internal/domain"
	"github.com/figpack/figscan/internal/logger"
	"github.com/figpack/figscan/internal/pipeline"
)

// fakeFinder returns a fixed candidate list.
type fakeFinder struct {
	candidates []domain.Candidate
	err        error
}

func (f *fakeFinder) FindCandidates(ctx context.Context) ([]domain.Candidate, error) {
	return f.candidates, f.err
}

// fakeFetcher fails for the named repositories and fabricates a path for
// the rest.
type fakeFetcher struct {
	failing map[string]bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, cand domain.Candidate) (string, error) {
	if f.failing[cand.FullName()] {
		return "", errors.New("remote: Repository not found")
	}
	return filepath.Join("fake", cand.DirName()), nil
}

// fakeScanner returns canned references per repository.
type fakeScanner struct {
	refs map[string][]domain.Reference
	errs map[string]error
}

func (s *fakeScanner) Scan(ctx context.Context, repo string, root string) ([]domain.Reference, error) {
	if err := s.errs[repo]; err != nil {
		return nil, err
	}
	return s.refs[repo], nil
}

func testRunConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Search: &config.SearchConfig{
			Query:          config.DefaultQuery,
			MaxPages:       1,
			PerPage:        100,
			MaxRetries:     1,
			RequestTimeout: time.Second,
		},
		Fetch: &config.FetchConfig{
			Workdir: t.TempDir(),
			Timeout: time.Minute,
		},
		Scan: &config.ScanConfig{
			Timeout:    time.Minute,
			Extensions: config.DefaultExtensions,
		},
		Output: &config.OutputConfig{
			Path: filepath.Join(t.TempDir(), "refs.json"),
		},
		Workers: &config.WorkersConfig{
			PoolSize:     4,
			DrainTimeout: 5 * time.Second,
		},
	}
}

func ref(repo, file, url string) domain.Reference {
	return domain.Reference{Repo: repo, File: file, URL: url}
}

func readArtifact(t *testing.T, path string) []domain.Reference {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var refs []domain.Reference
	require.NoError(t, json.Unmarshal(data, &refs))
	return refs
}

func TestPipeline_Run_HappyPath(t *testing.T) {
	t.Parallel()

	cfg := testRunConfig(t)
	finder := &fakeFinder{candidates: []domain.Candidate{
		{Owner: "acme", Name: "widgets"},
		{Owner: "zeta", Name: "tools"},
	}}
	scanner := &fakeScanner{refs: map[string][]domain.Reference{
		"acme/widgets": {
			ref("acme/widgets", "docs/readme.md", "https://figures.figpack.org/abc123?x=1"),
		},
		"zeta/tools": {
			ref("zeta/tools", "README.md", "https://figures.figpack.org/def"),
		},
	}}

	p := pipeline.New(cfg, logger.NewNoOp(), finder, &fakeFetcher{}, scanner)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, summary.Candidates)
	require.Equal(t, 2, summary.Scanned)
	require.Empty(t, summary.Skipped)
	require.Equal(t, 2, summary.Records)
	require.NotEmpty(t, summary.RunID)

	refs := readArtifact(t, cfg.Output.Path)
	require.Equal(t, []domain.Reference{
		ref("acme/widgets", "docs/readme.md", "https://figures.figpack.org/abc123?x=1"),
		ref("zeta/tools", "README.md", "https://figures.figpack.org/def"),
	}, refs)
}

func TestPipeline_Run_DeduplicatesExactTriples(t *testing.T) {
	t.Parallel()

	cfg := testRunConfig(t)
	finder := &fakeFinder{candidates: []domain.Candidate{{Owner: "acme", Name: "widgets"}}}
	scanner := &fakeScanner{refs: map[string][]domain.Reference{
		"acme/widgets": {
			ref("acme/widgets", "a.md", "https://figures.figpack.org/same"),
			ref("acme/widgets", "a.md", "https://figures.figpack.org/same"),
			ref("acme/widgets", "b.md", "https://figures.figpack.org/same"),
		},
	}}

	p := pipeline.New(cfg, logger.NewNoOp(), finder, &fakeFetcher{}, scanner)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Records)

	refs := readArtifact(t, cfg.Output.Path)
	require.Len(t, refs, 2)
	require.Equal(t, "a.md", refs[0].File)
	require.Equal(t, "b.md", refs[1].File)
}

func TestPipeline_Run_FetchFailureIsIsolated(t *testing.T) {
	t.Parallel()

	cfg := testRunConfig(t)
	finder := &fakeFinder{candidates: []domain.Candidate{
		{Owner: "gone", Name: "deleted"},
		{Owner: "acme", Name: "widgets"},
	}}
	fetcher := &fakeFetcher{failing: map[string]bool{"gone/deleted": true}}
	scanner := &fakeScanner{refs: map[string][]domain.Reference{
		"acme/widgets": {
			ref("acme/widgets", "docs/readme.md", "https://figures.figpack.org/abc"),
		},
	}}

	p := pipeline.New(cfg, logger.NewNoOp(), finder, fetcher, scanner)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.Scanned)
	require.Len(t, summary.Skipped, 1)
	require.Equal(t, "gone/deleted", summary.Skipped[0].Repo)

	refs := readArtifact(t, cfg.Output.Path)
	require.Len(t, refs, 1)
	require.Equal(t, "acme/widgets", refs[0].Repo)
}

func TestPipeline_Run_ScanFailureIsIsolated(t *testing.T) {
	t.Parallel()

	cfg := testRunConfig(t)
	finder := &fakeFinder{candidates: []domain.Candidate{
		{Owner: "acme", Name: "widgets"},
		{Owner: "bad", Name: "tree"},
	}}
	scanner := &fakeScanner{
		refs: map[string][]domain.Reference{
			"acme/widgets": {
				ref("acme/widgets", "a.md", "https://figures.figpack.org/abc"),
			},
		},
		errs: map[string]error{"bad/tree": errors.New("walk failed")},
	}

	p := pipeline.New(cfg, logger.NewNoOp(), finder, &fakeFetcher{}, scanner)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Skipped, 1)
	require.Equal(t, "bad/tree", summary.Skipped[0].Repo)
	require.Len(t, readArtifact(t, cfg.Output.Path), 1)
}

func TestPipeline_Run_NoCandidatesWritesEmptyArray(t *testing.T) {
	t.Parallel()

	cfg := testRunConfig(t)
	p := pipeline.New(cfg, logger.NewNoOp(), &fakeFinder{}, &fakeFetcher{}, &fakeScanner{})
	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, summary.Records)

	data, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	require.JSONEq(t, "[]", string(data))
}

func TestPipeline_Run_SearchFailureIsFatal(t *testing.T) {
	t.Parallel()

	cfg := testRunConfig(t)
	finder := &fakeFinder{err: errors.New("rate limit exhausted")}

	p := pipeline.New(cfg, logger.NewNoOp(), finder, &fakeFetcher{}, &fakeScanner{})
	_, err := p.Run(context.Background())
	require.Error(t, err)

	// A failed search must never touch the artifact path.
	_, statErr := os.Stat(cfg.Output.Path)
	require.True(t, os.IsNotExist(statErr))
}

func TestPipeline_Run_FailureKeepsPreviousArtifact(t *testing.T) {
	t.Parallel()

	cfg := testRunConfig(t)
	previous := `[{"repo":"old/repo","file":"a.md","url":"https://figures.figpack.org/old"}]`
	require.NoError(t, os.WriteFile(cfg.Output.Path, []byte(previous), 0o644))

	finder := &fakeFinder{err: errors.New("search exploded")}
	p := pipeline.New(cfg, logger.NewNoOp(), finder, &fakeFetcher{}, &fakeScanner{})
	_, err := p.Run(context.Background())
	require.Error(t, err)

	data, readErr := os.ReadFile(cfg.Output.Path)
	require.NoError(t, readErr)
	require.JSONEq(t, previous, string(data))
}

func TestPipeline_Run_IsIdempotent(t *testing.T) {
	t.Parallel()

	cfg := testRunConfig(t)
	finder := &fakeFinder{candidates: []domain.Candidate{
		{Owner: "acme", Name: "widgets"},
		{Owner: "zeta", Name: "tools"},
	}}
	scanner := &fakeScanner{refs: map[string][]domain.Reference{
		"acme/widgets": {ref("acme/widgets", "a.md", "https://figures.figpack.org/1")},
		"zeta/tools":   {ref("zeta/tools", "b.md", "https://figures.figpack.org/2")},
	}}

	p := pipeline.New(cfg, logger.NewNoOp(), finder, &fakeFetcher{}, scanner)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)

	require.Equal(t, first, second)
}
