// Package output writes the JSON reference artifact. The write is atomic:
// a concurrent reader of the published path never observes a partial file,
// and a failed run leaves the previous artifact untouched.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/figpack/figscan/internal/domain"
)

// ErrWriteFailed is returned when the artifact could not be written.
// A write failure aborts the run with a non-zero exit.
var ErrWriteFailed = errors.New("artifact write failed")

// WriteArtifact serializes refs as an indented JSON array and moves it into
// place at path. Parent directories are created as needed. A nil or empty
// slice produces the literal "[]", never "null".
func WriteArtifact(path string, refs []domain.Reference) error {
	if refs == nil {
		refs = []domain.Reference{}
	}

	data, err := json.MarshalIndent(refs, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %w", ErrWriteFailed, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create parent directory: %w", ErrWriteFailed, err)
	}

	// Stage in the destination directory so the rename stays on one
	// filesystem and is atomic.
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrWriteFailed, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("%w: write temp file: %w", ErrWriteFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: sync temp file: %w", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %w", ErrWriteFailed, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename into place: %w", ErrWriteFailed, err)
	}

	return nil
}
