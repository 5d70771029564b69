// Package domain provides domain models used across the application.
package domain

import "strings"

// Reference represents one observed occurrence of a figpack figure URL
// inside one Markdown file of one repository.
type Reference struct {
	// Repository full name in "owner/name" form
	Repo string `json:"repo" mapstructure:"repo"`
	// File path relative to the repository root, forward slashes
	File string `json:"file" mapstructure:"file"`
	// The matched figure URL
	URL string `json:"url" mapstructure:"url"`
}

// Key returns the identity of the reference. Two references with the same
// key are exact duplicates and collapse to one record in the output.
func (r Reference) Key() string {
	return r.Repo + "\x00" + r.File + "\x00" + r.URL
}

// Candidate represents a repository identified by code search as potentially
// containing figure references. Candidates only live for the duration of one
// run; scanning confirms or refutes them.
type Candidate struct {
	// Owner is the user or organization that owns the repository
	Owner string `json:"owner"`
	// Name is the repository name
	Name string `json:"name"`
}

// ParseCandidate splits a "owner/name" full name into a Candidate.
// Returns false if the input is not a two-segment full name.
func ParseCandidate(fullName string) (Candidate, bool) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Candidate{}, false
	}
	return Candidate{Owner: owner, Name: name}, true
}

// FullName returns the "owner/name" form of the candidate.
func (c Candidate) FullName() string {
	return c.Owner + "/" + c.Name
}

// DirName returns a filesystem-safe directory name for the candidate,
// used to key per-repository scratch directories so concurrent fetches
// never collide.
func (c Candidate) DirName() string {
	return c.Owner + "__" + c.Name
}
