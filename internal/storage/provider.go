// Package storage defines the file-system operations ferry performs on the
// watched folder, the error sink and the output folders.
package storage

import "github.com/starford/ferry/internal/models"

// Provider is the interface for file operations on absolute paths.
type Provider interface {
	// List returns the regular files directly inside dir, without recursion.
	List(dir string) ([]models.WatchedFile, error)
	// Exists reports whether path exists. Errors other than "not exist"
	// are returned so a flaky share is not mistaken for a missing file.
	Exists(path string) (bool, error)
	// IsDir reports whether path exists and is a directory.
	IsDir(path string) bool
	// MkdirAll creates dir and any missing parents.
	MkdirAll(dir string) error
	// Copy copies src to dst, replacing dst if it exists.
	Copy(src, dst string) error
	// Remove deletes the file at path.
	Remove(path string) error
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
}
