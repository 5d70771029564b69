package config

import "time"

// Search defaults.
const (
	// DefaultQuery finds Markdown files containing the figpack figure URL prefix.
	DefaultQuery = `in:file extension:md "https://figures.figpack.org/"`

	// DefaultMaxPages is the default page bound for code search.
	DefaultMaxPages = 10

	// DefaultPerPage is the default number of results per page.
	DefaultPerPage = 100

	// MaxPerPage is the API's hard cap on results per page.
	MaxPerPage = 100

	// DefaultMaxRetries bounds rate-limit retries per search request.
	DefaultMaxRetries = 3

	// DefaultSearchRequestTimeout bounds a single search request.
	DefaultSearchRequestTimeout = 30 * time.Second
)

// Fetch and scan defaults.
const (
	// DefaultWorkdir is the default scratch directory for clones.
	DefaultWorkdir = "./_repos"

	// DefaultFetchTimeout bounds a single shallow clone.
	DefaultFetchTimeout = 5 * time.Minute

	// DefaultScanTimeout bounds a single repository scan.
	DefaultScanTimeout = 2 * time.Minute
)

// DefaultExtensions are the file extensions treated as Markdown.
var DefaultExtensions = []string{".md", ".markdown"}

// Output and worker defaults.
const (
	// DefaultOutputPath is the default artifact path.
	DefaultOutputPath = "figpack-url-refs.json"

	// DefaultPoolSize is the default number of fetch/scan workers.
	DefaultPoolSize = 8

	// MinWorkers is the minimum allowed pool size.
	MinWorkers = 1

	// MaxWorkers is the maximum allowed pool size.
	MaxWorkers = 64

	// DefaultDrainTimeout bounds graceful worker shutdown.
	DefaultDrainTimeout = 30 * time.Second
)
