// Package cache mirrors resolved vault files into the current vault and
// serves the mirror when the source becomes unreachable. The cache is a
// continuity mechanism, not a freshness layer: presence of a cache entry
// never suppresses a successful source read.
package cache

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/linkparse"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/resolver"
	"github.com/starford/raido/internal/storage"
)

// Origin identifies where fetched content came from.
type Origin string

const (
	OriginSource Origin = "source"
	OriginCache  Origin = "cache"
)

// Result is the outcome of a successful fetch.
type Result struct {
	Content []byte
	Path    string // absolute path of the file the content was read from
	Origin  Origin
}

// EntryPath returns the vault-relative cache location for a file reference:
// <vaultName>/<fileRef>.md. One subfolder per mapped vault name; the
// namespace is managed exclusively by the cache manager. References whose ..
// segments would place the entry outside that subfolder return ok=false and
// have no cache location at all.
func EntryPath(vaultName, fileRef string) (string, bool) {
	entry := path.Join(vaultName, linkparse.NormalizeRef(fileRef)) + ".md"
	if !strings.HasPrefix(entry, vaultName+"/") {
		return "", false
	}
	return entry, true
}

// Manager owns the cache namespace inside the current vault.
type Manager struct {
	store  storage.Provider
	logger *slog.Logger
}

// NewManager creates a cache manager writing through the given current-vault
// storage provider.
func NewManager(store storage.Provider, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Fetch reads the content for fileRef from the vault rooted at root.
//
// The source is authoritative whenever it resolves: its content is returned
// and, for cache-enabled mappings, mirrored into the cache entry
// (unconditionally overwriting any prior content). The cache is read only
// when the source does not resolve. Returns apperr.ErrNotFound when neither
// tier yields content. A failed cache write is logged and swallowed; it never
// blocks returning the source content.
func (m *Manager) Fetch(mapping registry.Mapping, root, fileRef string) (*Result, error) {
	if src, ok := resolver.Resolve(root, fileRef); ok {
		content, err := os.ReadFile(src)
		if err == nil {
			if mapping.CacheEnabled() {
				if entry, ok := EntryPath(mapping.Name, fileRef); ok {
					if werr := m.store.Write(entry, content); werr != nil {
						m.logger.Warn("cache: mirror write failed",
							slog.String("vault", mapping.Name),
							slog.String("file", fileRef),
							slog.String("error", werr.Error()))
					}
				}
			}
			return &Result{Content: content, Path: src, Origin: OriginSource}, nil
		}
		// Read failure degrades to the cache tier, same as a resolution miss.
		m.logger.Warn("cache: source read failed",
			slog.String("path", src),
			slog.String("error", err.Error()))
	}

	if entry, ok := EntryPath(mapping.Name, fileRef); ok && mapping.CacheEnabled() {
		if content, err := m.store.Read(entry); err == nil {
			abs, aerr := m.store.Abs(entry)
			if aerr != nil {
				abs = entry
			}
			return &Result{Content: content, Path: abs, Origin: OriginCache}, nil
		}
	}

	return nil, fmt.Errorf("cache: %s in vault %s: %w", fileRef, mapping.Name, apperr.ErrNotFound)
}

// HasEntry reports whether a cache entry exists for the vault/file pair.
// A user deleting the entry through normal file management simply reverts it
// to this returning false; there is no separate metadata record.
func (m *Manager) HasEntry(vaultName, fileRef string) bool {
	entry, ok := EntryPath(vaultName, fileRef)
	return ok && m.store.Exists(entry)
}

// Purge removes a vault's entire cache namespace.
func (m *Manager) Purge(vaultName string) error {
	return m.store.RemoveTree(vaultName)
}
