// Package pipeline orchestrates one complete indexing run: sequential code
// search, concurrent fetch and scan across a bounded worker pool, then a
// single-threaded aggregation and an atomic artifact write.
//
// A run has exactly two states, in-progress and complete. Any failure before
// the final write leaves the previously published artifact untouched.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/figpack/figscan/internal/config"
	"github.com/figpack/figscan/internal/domain"
	"github.com/figpack/figscan/internal/logger"
	"github.com/figpack/figscan/internal/output"
	"github.com/figpack/figscan/internal/worker"
)

// CandidateFinder discovers repositories to index.
type CandidateFinder interface {
	FindCandidates(ctx context.Context) ([]domain.Candidate, error)
}

// RepoFetcher obtains a local snapshot of a candidate repository.
type RepoFetcher interface {
	Fetch(ctx context.Context, cand domain.Candidate) (string, error)
}

// RepoScanner extracts figure references from a local snapshot.
type RepoScanner interface {
	Scan(ctx context.Context, repo string, root string) ([]domain.Reference, error)
}

// Summary reports the outcome of one run.
type Summary struct {
	// RunID identifies the run in logs.
	RunID string
	// Candidates is the number of repositories returned by search.
	Candidates int
	// Scanned is the number of repositories fetched and scanned.
	Scanned int
	// Skipped lists the repositories that failed fetch or scan.
	Skipped []SkippedRepo
	// Records is the number of deduplicated references written.
	Records int
	// OutputPath is where the artifact was written.
	OutputPath string
	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// SkippedRepo records one repository excluded from the run output.
type SkippedRepo struct {
	Repo   string
	Reason string
}

// Pipeline wires the run phases together.
type Pipeline struct {
	cfg      config.Interface
	logger   logger.Interface
	searcher CandidateFinder
	fetcher  RepoFetcher
	scanner  RepoScanner
}

// New creates a pipeline from its collaborators.
func New(
	cfg config.Interface,
	log logger.Interface,
	searcher CandidateFinder,
	fetcher RepoFetcher,
	scanner RepoScanner,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		logger:   log,
		searcher: searcher,
		fetcher:  fetcher,
		scanner:  scanner,
	}
}

// Run executes one complete indexing run and returns its summary. Search
// and write failures are returned as errors; per-repository failures are
// contained and reported in the summary.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	log := p.logger.WithRunID(runID)
	start := time.Now()

	summary := &Summary{
		RunID:      runID,
		OutputPath: p.cfg.GetOutputConfig().Path,
	}

	log.Info("run started")

	candidates, err := p.searcher.FindCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("search phase: %w", err)
	}
	summary.Candidates = len(candidates)

	results, skipped, err := p.fetchAndScan(ctx, log, candidates)
	if err != nil {
		return nil, err
	}
	summary.Skipped = skipped
	summary.Scanned = len(candidates) - len(skipped)

	refs := aggregate(candidates, results)
	summary.Records = len(refs)

	// The final path is only touched once the full artifact is built; a
	// cancelled run must not replace the published file.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run cancelled: %w", err)
	}

	if err := output.WriteArtifact(summary.OutputPath, refs); err != nil {
		return nil, fmt.Errorf("write phase: %w", err)
	}

	summary.Duration = time.Since(start)
	log.Info("run complete",
		"candidates", summary.Candidates,
		"scanned", summary.Scanned,
		"skipped", len(summary.Skipped),
		"records", summary.Records,
		"duration", summary.Duration.String(),
	)

	return summary, nil
}

// fetchAndScan processes every candidate across the worker pool and returns
// per-repository reference lists keyed by full name, plus the repositories
// that had to be skipped.
func (p *Pipeline) fetchAndScan(
	ctx context.Context,
	log logger.Interface,
	candidates []domain.Candidate,
) (map[string][]domain.Reference, []SkippedRepo, error) {
	var (
		mu      sync.Mutex
		results = make(map[string][]domain.Reference, len(candidates))
		skipped []SkippedRepo
	)

	scanTimeout := p.cfg.GetScanConfig().Timeout

	handler := func(ctx context.Context, cand domain.Candidate) error {
		repoLog := log.WithRepo(cand.FullName())

		root, err := p.fetcher.Fetch(ctx, cand)
		if err != nil {
			repoLog.Warn("repository skipped: fetch failed", "error", err)
			mu.Lock()
			skipped = append(skipped, SkippedRepo{Repo: cand.FullName(), Reason: err.Error()})
			mu.Unlock()
			return err
		}

		scanCtx, cancel := context.WithTimeout(ctx, scanTimeout)
		defer cancel()

		refs, err := p.scanner.Scan(scanCtx, cand.FullName(), root)
		if err != nil {
			repoLog.Warn("repository skipped: scan failed", "error", err)
			mu.Lock()
			skipped = append(skipped, SkippedRepo{Repo: cand.FullName(), Reason: err.Error()})
			mu.Unlock()
			return err
		}

		repoLog.Info("repository scanned", "records", len(refs))
		mu.Lock()
		results[cand.FullName()] = refs
		mu.Unlock()
		return nil
	}

	poolCfg := worker.Config{
		PoolSize:     p.cfg.GetWorkersConfig().PoolSize,
		DrainTimeout: p.cfg.GetWorkersConfig().DrainTimeout,
	}
	pool, err := worker.NewPool(poolCfg, handler, log)
	if err != nil {
		return nil, nil, fmt.Errorf("create worker pool: %w", err)
	}
	if err := pool.Start(); err != nil {
		return nil, nil, fmt.Errorf("start worker pool: %w", err)
	}

	for _, cand := range candidates {
		if submitErr := pool.Submit(ctx, cand); submitErr != nil {
			// Submission only fails when the run is being cancelled;
			// remaining candidates are abandoned.
			log.Warn("submission stopped", "error", submitErr)
			break
		}
	}

	pool.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), poolCfg.DrainTimeout)
	defer cancel()
	if stopErr := pool.Stop(stopCtx); stopErr != nil {
		log.Warn("worker pool stop", "error", stopErr)
	}

	// Candidates the cancelled loop never submitted count as skipped.
	mu.Lock()
	defer mu.Unlock()
	done := make(map[string]bool, len(results)+len(skipped))
	for name := range results {
		done[name] = true
	}
	for _, s := range skipped {
		done[s.Repo] = true
	}
	for _, cand := range candidates {
		if !done[cand.FullName()] {
			skipped = append(skipped, SkippedRepo{Repo: cand.FullName(), Reason: "run interrupted"})
		}
	}

	return results, skipped, nil
}

// aggregate merges per-repository reference lists in candidate order and
// drops exact duplicate triples. Candidate order is sorted and within a
// repository references follow the lexical walk, so output is deterministic
// across runs over unchanged inputs.
func aggregate(candidates []domain.Candidate, results map[string][]domain.Reference) []domain.Reference {
	merged := make([]domain.Reference, 0)
	seen := make(map[string]struct{})

	for _, cand := range candidates {
		for _, ref := range results[cand.FullName()] {
			key := ref.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, ref)
		}
	}

	return merged
}

// SortSkipped orders skipped repositories by name for stable reporting.
func SortSkipped(skipped []SkippedRepo) {
	sort.Slice(skipped, func(i, j int) bool {
		return skipped[i].Repo < skipped[j].Repo
	})
}
