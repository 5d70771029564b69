package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/figpack/figscan/internal/config"
	"github.com/figpack/figscan/internal/logger"
	"github.com/figpack/figscan/internal/scanner"
)

func TestExtractURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain prose",
			text: "see https://figures.figpack.org/abc123?x=1 for details",
			want: []string{"https://figures.figpack.org/abc123?x=1"},
		},
		{
			name: "stops at whitespace",
			text: "https://figures.figpack.org/abc next",
			want: []string{"https://figures.figpack.org/abc"},
		},
		{
			name: "stops at angle brackets",
			text: "<https://figures.figpack.org/abc>",
			want: []string{"https://figures.figpack.org/abc"},
		},
		{
			name: "markdown link delimiter trimmed",
			text: "[figure](https://figures.figpack.org/abc/index.html)",
			want: []string{"https://figures.figpack.org/abc/index.html"},
		},
		{
			name: "sentence punctuation trimmed",
			text: "as shown in https://figures.figpack.org/abc.",
			want: []string{"https://figures.figpack.org/abc"},
		},
		{
			name: "multiple matches in order",
			text: "a https://figures.figpack.org/one b https://figures.figpack.org/two c",
			want: []string{"https://figures.figpack.org/one", "https://figures.figpack.org/two"},
		},
		{
			name: "duplicates preserved",
			text: "https://figures.figpack.org/same and https://figures.figpack.org/same",
			want: []string{"https://figures.figpack.org/same", "https://figures.figpack.org/same"},
		},
		{
			name: "bare prefix is not a match",
			text: "the base URL is https://figures.figpack.org/ only",
			want: nil,
		},
		{
			name: "no matches",
			text: "nothing to see here",
			want: nil,
		},
		{
			name: "code fence counts",
			text: "```\ncurl https://figures.figpack.org/in-fence\n```",
			want: []string{"https://figures.figpack.org/in-fence"},
		},
	}

	for i := range tests {
		test := &tests[i]
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			got := scanner.ExtractURLs(test.text)
			require.Equal(t, test.want, got)
		})
	}
}

func newScanner(t *testing.T) *scanner.Scanner {
	t.Helper()

	cfg := &config.ScanConfig{
		Timeout:    config.DefaultScanTimeout,
		Extensions: config.DefaultExtensions,
	}
	return scanner.NewScanner(cfg, logger.NewNoOp())
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanner_Scan(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "docs/readme.md", "see https://figures.figpack.org/abc123?x=1 for details")
	writeFile(t, root, "notes.markdown", "also https://figures.figpack.org/def")
	writeFile(t, root, "ignored.txt", "https://figures.figpack.org/not-scanned")
	writeFile(t, root, ".git/config", "https://figures.figpack.org/in-git-metadata")

	s := newScanner(t)
	refs, err := s.Scan(context.Background(), "acme/widgets", root)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	// WalkDir is lexical, so docs/readme.md precedes notes.markdown.
	require.Equal(t, "acme/widgets", refs[0].Repo)
	require.Equal(t, "docs/readme.md", refs[0].File)
	require.Equal(t, "https://figures.figpack.org/abc123?x=1", refs[0].URL)

	require.Equal(t, "notes.markdown", refs[1].File)
	require.Equal(t, "https://figures.figpack.org/def", refs[1].URL)
}

func TestScanner_Scan_SkipsBinaryFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "binary.md")
	require.NoError(t, os.WriteFile(path, []byte("https://figures.figpack.org/x\x00\xff"), 0o644))
	writeFile(t, root, "good.md", "https://figures.figpack.org/kept")

	s := newScanner(t)
	refs, err := s.Scan(context.Background(), "acme/widgets", root)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, "good.md", refs[0].File)
}

func TestScanner_Scan_EmptyTree(t *testing.T) {
	t.Parallel()

	s := newScanner(t)
	refs, err := s.Scan(context.Background(), "acme/widgets", t.TempDir())
	require.NoError(t, err)
	require.Empty(t, refs)
}

func TestScanner_Scan_DuplicatesWithinFilePreserved(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "dup.md", "https://figures.figpack.org/same https://figures.figpack.org/same")

	s := newScanner(t)
	refs, err := s.Scan(context.Background(), "acme/widgets", root)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, refs[0], refs[1])
}

func TestScanner_Scan_Cancelled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "a.md", "https://figures.figpack.org/abc")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newScanner(t)
	_, err := s.Scan(ctx, "acme/widgets", root)
	require.Error(t, err)
}
