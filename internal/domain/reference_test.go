package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/figpack/figscan/internal/domain"
)

func TestParseCandidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fullName string
		want     domain.Candidate
		wantOK   bool
	}{
		{
			name:     "valid full name",
			fullName: "acme/widgets",
			want:     domain.Candidate{Owner: "acme", Name: "widgets"},
			wantOK:   true,
		},
		{
			name:     "missing separator",
			fullName: "acmewidgets",
			wantOK:   false,
		},
		{
			name:     "empty owner",
			fullName: "/widgets",
			wantOK:   false,
		},
		{
			name:     "empty name",
			fullName: "acme/",
			wantOK:   false,
		},
		{
			name:     "extra segment",
			fullName: "acme/widgets/extra",
			wantOK:   false,
		},
		{
			name:     "empty string",
			fullName: "",
			wantOK:   false,
		},
	}

	for i := range tests {
		test := &tests[i]
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			got, ok := domain.ParseCandidate(test.fullName)
			require.Equal(t, test.wantOK, ok)
			if test.wantOK {
				require.Equal(t, test.want, got)
			}
		})
	}
}

func TestCandidate_Names(t *testing.T) {
	t.Parallel()

	cand := domain.Candidate{Owner: "acme", Name: "widgets"}
	require.Equal(t, "acme/widgets", cand.FullName())
	require.Equal(t, "acme__widgets", cand.DirName())
}

func TestReference_Key(t *testing.T) {
	t.Parallel()

	a := domain.Reference{Repo: "acme/widgets", File: "docs/readme.md", URL: "https://figures.figpack.org/abc"}
	b := domain.Reference{Repo: "acme/widgets", File: "docs/readme.md", URL: "https://figures.figpack.org/abc"}
	c := domain.Reference{Repo: "acme/widgets", File: "docs/readme.md", URL: "https://figures.figpack.org/def"}

	require.Equal(t, a.Key(), b.Key())
	require.NotEqual(t, a.Key(), c.Key())

	// Field boundaries must not be confusable.
	d := domain.Reference{Repo: "acme", File: "widgets/docs/readme.md", URL: "https://figures.figpack.org/abc"}
	require.NotEqual(t, a.Key(), d.Key())
}
