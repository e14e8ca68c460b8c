// Package storage defines the current-vault file-system abstraction. The
// cache manager goes through it for every read and write inside the reserved
// cache namespace.
package storage

// Provider is the interface for current-vault file operations. All paths are
// relative to the vault root.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether path exists as a regular file.
	Exists(path string) bool
	// Abs resolves path against the vault root, rejecting escapes.
	Abs(path string) (string, error)
	// Delete removes the file at path.
	Delete(path string) error
	// RemoveTree removes path and everything under it.
	RemoveTree(path string) error
}
