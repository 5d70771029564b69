// Package scanner walks a repository snapshot and extracts figpack figure
// URLs from its Markdown files. Matching is substring based, not a Markdown
// parse: link syntax, code fences, and plain prose all count equally.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/figpack/figscan/internal/config"
	"github.com/figpack/figscan/internal/domain"
	"github.com/figpack/figscan/internal/logger"
)

// URLPrefix is the literal prefix every extracted URL starts with.
const URLPrefix = "https://figures.figpack.org/"

// urlPattern matches the prefix followed by a run of non-whitespace,
// non-angle-bracket characters. Trailing punctuation and Markdown closing
// delimiters are stripped afterwards by trimURL.
var urlPattern = regexp.MustCompile(`https://figures\.figpack\.org/[^\s<>]+`)

// urlTrailerCutset holds the characters trimmed from the end of a raw match:
// sentence punctuation plus closing Markdown link/image delimiters and quotes.
const urlTrailerCutset = ".,;:!?)]\"'`"

// maxFileSize bounds how large a Markdown file the scanner will read.
const maxFileSize = 10 * 1024 * 1024 // 10 MB

// Scanner extracts figure references from Markdown files under a directory.
type Scanner struct {
	cfg    *config.ScanConfig
	logger logger.Interface
}

// NewScanner creates a new scanner.
func NewScanner(cfg *config.ScanConfig, log logger.Interface) *Scanner {
	return &Scanner{
		cfg:    cfg,
		logger: log.WithComponent("scanner"),
	}
}

// Scan walks the snapshot at root and returns one reference per match, in
// walk order. Duplicate matches within a file are preserved; run-wide
// deduplication happens in the aggregator. Unreadable or non-UTF-8 files are
// skipped and the scan continues.
func (s *Scanner) Scan(ctx context.Context, repo string, root string) ([]domain.Reference, error) {
	var refs []domain.Reference

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// An unreadable directory entry is a file-level failure,
			// not a repository-level one.
			s.logger.Warn("walk error, skipping entry", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			// Never traverse version-control metadata.
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}

		if !s.isMarkdown(d.Name()) {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			s.logger.Warn("cannot relativize path, skipping file", "path", path, "error", relErr)
			return nil
		}

		text, ok := s.readText(path)
		if !ok {
			return nil
		}

		for _, url := range ExtractURLs(text) {
			refs = append(refs, domain.Reference{
				Repo: repo,
				File: filepath.ToSlash(rel),
				URL:  url,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", repo, err)
	}

	return refs, nil
}

// isMarkdown reports whether the file name carries a Markdown extension.
func (s *Scanner) isMarkdown(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range s.cfg.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// readText reads the file as UTF-8 text. Oversized, binary, or undecodable
// files are skipped with a log line.
func (s *Scanner) readText(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		s.logger.Warn("stat failed, skipping file", "path", path, "error", err)
		return "", false
	}
	if info.Size() > maxFileSize {
		s.logger.Warn("file too large, skipping", "path", path, "size", info.Size())
		return "", false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("read failed, skipping file", "path", path, "error", err)
		return "", false
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		s.logger.Debug("not valid UTF-8 text, skipping file", "path", path)
		return "", false
	}

	return string(data), true
}

// ExtractURLs returns every figure URL in text, in order of occurrence.
// A match runs from the literal prefix to the first whitespace or angle
// bracket, with trailing punctuation and closing Markdown delimiters
// stripped. A bare prefix with nothing after it is not a match.
func ExtractURLs(text string) []string {
	raw := urlPattern.FindAllString(text, -1)
	if len(raw) == 0 {
		return nil
	}

	urls := make([]string, 0, len(raw))
	for _, m := range raw {
		url := strings.TrimRight(m, urlTrailerCutset)
		if len(url) <= len(URLPrefix) {
			continue
		}
		urls = append(urls, url)
	}
	if len(urls) == 0 {
		return nil
	}
	return urls
}
