// Package search implements the GitHub code-search client used to discover
// candidate repositories. The search phase is strictly sequential: pages are
// requested in order and the candidate set must be complete before any
// fetching begins.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/figpack/figscan/internal/config"
	"github.com/figpack/figscan/internal/domain"
	"github.com/figpack/figscan/internal/logger"
)

// DefaultEndpoint is the GitHub code-search endpoint.
const DefaultEndpoint = "https://api.github.com/search/code"

// userAgent identifies this tool to the API.
const userAgent = "figscan"

// maxErrorBodyBytes limits how much of an error response body is kept.
const maxErrorBodyBytes = 4096

// maxRateLimitWait caps how long a single rate-limit reset is honored.
const maxRateLimitWait = 2 * time.Minute

// Transport tuning for the search client. All pages go to the same host, so
// a small idle pool is enough.
const (
	defaultMaxIdleConns        = 10
	defaultIdleConnTimeout     = 90 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
)

// Common errors returned by the search package.
var (
	// ErrSearchFailed is returned when the search API returned an
	// unrecoverable error or retries were exhausted. A failed search
	// aborts the run; there is nothing to index without candidates.
	ErrSearchFailed = errors.New("code search failed")

	// ErrRateLimited marks a retryable rate-limit response.
	ErrRateLimited = errors.New("rate limited")
)

// searchResponse mirrors the subset of the code-search response we consume.
type searchResponse struct {
	TotalCount        int  `json:"total_count"`
	IncompleteResults bool `json:"incomplete_results"`
	Items             []struct {
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
	} `json:"items"`
}

// Client queries the code-search API for candidate repositories.
type Client struct {
	httpClient    *http.Client
	endpoint      string
	cfg           *config.SearchConfig
	logger        logger.Interface
	retryInterval time.Duration
}

// NewClient creates a new search client.
func NewClient(cfg *config.SearchConfig, log logger.Interface) *Client {
	transport := &http.Transport{
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConns,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		endpoint:      DefaultEndpoint,
		cfg:           cfg,
		logger:        log.WithComponent("search"),
		retryInterval: 2 * time.Second,
	}
}

// SetEndpoint overrides the search endpoint. Used in tests.
func (c *Client) SetEndpoint(endpoint string) {
	c.endpoint = endpoint
}

// FindCandidates paginates the code-search API and returns the distinct
// repositories whose default branch contains a matching file. Candidates are
// sorted by full name so repeated runs over unchanged inputs produce
// identical output.
func (c *Client) FindCandidates(ctx context.Context) ([]domain.Candidate, error) {
	seen := make(map[string]domain.Candidate)

	for page := 1; page <= c.cfg.MaxPages; page++ {
		resp, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", ErrSearchFailed, page, err)
		}

		c.logger.Info("search page fetched",
			"page", page,
			"items", len(resp.Items),
			"total_count", resp.TotalCount,
		)

		for _, item := range resp.Items {
			cand, ok := domain.ParseCandidate(item.Repository.FullName)
			if !ok {
				c.logger.Warn("skipping malformed repository name",
					"full_name", item.Repository.FullName,
				)
				continue
			}
			seen[cand.FullName()] = cand
		}

		// An empty or short page means results are exhausted; the API
		// caps code-search results around 1000 anyway.
		if len(resp.Items) < c.cfg.PerPage {
			break
		}
	}

	candidates := make([]domain.Candidate, 0, len(seen))
	for _, cand := range seen {
		candidates = append(candidates, cand)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].FullName() < candidates[j].FullName()
	})

	c.logger.Info("candidate repositories collected", "count", len(candidates))
	return candidates, nil
}

// fetchPage requests a single result page, retrying rate-limit and server
// errors with exponential backoff up to the configured retry bound.
func (c *Client) fetchPage(ctx context.Context, page int) (*searchResponse, error) {
	var result *searchResponse

	operation := func() error {
		resp, err := c.doRequest(ctx, page)
		if err != nil {
			return err
		}
		result = resp
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.retryInterval
	expBackoff.MaxInterval = 30 * time.Second

	policy := backoff.WithContext(
		backoff.WithMaxRetries(expBackoff, uint64(c.cfg.MaxRetries)),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

// doRequest performs one search request and classifies the response.
func (c *Client) doRequest(ctx context.Context, page int) (*searchResponse, error) {
	params := url.Values{}
	params.Set("q", c.cfg.Query)
	params.Set("per_page", strconv.Itoa(c.cfg.PerPage))
	params.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport errors are retryable.
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var parsed searchResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&parsed); decodeErr != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode search response: %w", decodeErr))
		}
		return &parsed, nil

	case isRateLimited(resp):
		c.waitForReset(ctx, resp)
		return nil, ErrRateLimited

	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("server error: status %d", resp.StatusCode)

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, backoff.Permanent(
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)),
		)
	}
}

// isRateLimited reports whether the response is a primary or secondary
// rate-limit rejection.
func isRateLimited(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.StatusCode == http.StatusForbidden &&
		resp.Header.Get("X-RateLimit-Remaining") == "0"
}

// waitForReset sleeps until the advertised rate-limit reset, bounded by
// maxRateLimitWait and the context. The subsequent retry then runs against
// a fresh quota instead of burning attempts against an exhausted one.
func (c *Client) waitForReset(ctx context.Context, resp *http.Response) {
	reset := resp.Header.Get("X-RateLimit-Reset")
	if reset == "" {
		return
	}
	resetTS, err := strconv.ParseInt(reset, 10, 64)
	if err != nil {
		return
	}

	wait := time.Until(time.Unix(resetTS, 0)) + time.Second
	if wait <= 0 {
		return
	}
	if wait > maxRateLimitWait {
		wait = maxRateLimitWait
	}

	c.logger.Warn("rate limit hit, waiting for reset", "wait", wait.String())

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
