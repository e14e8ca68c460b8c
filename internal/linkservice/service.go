// Package linkservice composes the parser, registry, resolver, and cache into
// the pipeline consumed by link decorators and API handlers.
package linkservice

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/cache"
	"github.com/starford/raido/internal/linkparse"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/resolver"
)

// Status is the three-way classification of a link occurrence.
type Status string

const (
	// StatusUnmapped: the vault name is not present in the registry. Hosts
	// render this as an invitation to map the vault, not as an error.
	StatusUnmapped Status = "unmapped"
	// StatusMapped: content is available, from the source or from the cache.
	StatusMapped Status = "mapped"
	// StatusMissing: the vault is mapped but no candidate path resolves and
	// no usable cache entry exists.
	StatusMissing Status = "missing"
)

// Classification describes one classified link.
type Classification struct {
	Status Status `json:"status"`
	Vault  string `json:"vault"`
	File   string `json:"file"`
	Path   string `json:"path,omitempty"` // resolved source path, when the source resolves
}

// Service wires the link resolution core together. All dependencies are
// injected at construction.
type Service struct {
	reg       *registry.Registry
	cache     *cache.Manager
	vaultRoot string // current vault root, base for relative mapping paths
	logger    *slog.Logger

	// NotifyPersistFailure, when set, is called after a registry persist
	// failure so the host can show a transient notice. Silent loss of a
	// mapping breaks future resolution, which the user must be able to
	// notice and retry.
	NotifyPersistFailure func(name string, err error)
}

// New creates the link service.
func New(reg *registry.Registry, cm *cache.Manager, vaultRoot string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reg: reg, cache: cm, vaultRoot: vaultRoot, logger: logger}
}

// Registry exposes the vault registry for change-hook wiring.
func (s *Service) Registry() *registry.Registry {
	return s.reg
}

// RootFor resolves a mapping's root path. Relative paths are resolved against
// the current vault root at lookup time, not at save time, so moving the
// current vault moves relative mappings with it.
func (s *Service) RootFor(m registry.Mapping) string {
	if filepath.IsAbs(m.Path) {
		return m.Path
	}
	return filepath.Join(s.vaultRoot, m.Path)
}

// Classify parses raw and reports whether its target is unmapped, reachable,
// or missing. Parse failures return an error wrapping apperr.ErrParse; the
// caller leaves such occurrences unannotated. A mapped vault whose source no
// longer resolves still classifies as mapped when a cache entry can serve it.
func (s *Service) Classify(raw string) (Classification, error) {
	link, err := linkparse.Parse(raw)
	if err != nil {
		return Classification{}, err
	}

	m, ok := s.reg.Lookup(link.Vault)
	if !ok {
		return Classification{Status: StatusUnmapped, Vault: link.Vault, File: link.File}, nil
	}

	if p, ok := resolver.Resolve(s.RootFor(m), link.File); ok {
		return Classification{Status: StatusMapped, Vault: link.Vault, File: link.File, Path: p}, nil
	}
	if m.CacheEnabled() && s.cache.HasEntry(m.Name, link.File) {
		return Classification{Status: StatusMapped, Vault: link.Vault, File: link.File}, nil
	}
	return Classification{Status: StatusMissing, Vault: link.Vault, File: link.File}, nil
}

// Fetch runs the full pipeline for raw and returns the content with its
// origin. Unmapped vaults return apperr.ErrUnmappedVault; a mapped vault with
// no source and no cache returns apperr.ErrNotFound.
func (s *Service) Fetch(raw string) (*cache.Result, error) {
	link, err := linkparse.Parse(raw)
	if err != nil {
		return nil, err
	}
	m, ok := s.reg.Lookup(link.Vault)
	if !ok {
		return nil, fmt.Errorf("linkservice: vault %q: %w", link.Vault, apperr.ErrUnmappedVault)
	}
	return s.cache.Fetch(m, s.RootFor(m), link.File)
}

// MapVault registers (or replaces) a mapping. Re-classification of visible
// links is triggered through the registry change hook.
func (s *Service) MapVault(name, path, policy, description string) error {
	if policy == "" {
		policy = registry.CachePolicyDisabled
	}
	m := registry.Mapping{
		Name:        name,
		Path:        path,
		CachePolicy: policy,
		Description: description,
	}
	// Validation failures are returned to the caller directly; only a failed
	// save warrants the transient persist-failure notice.
	if err := m.Validate(); err != nil {
		return fmt.Errorf("linkservice: invalid mapping: %w", err)
	}
	if err := s.reg.Upsert(m); err != nil {
		if s.NotifyPersistFailure != nil {
			s.NotifyPersistFailure(name, err)
		}
		return err
	}
	return nil
}

// RemoveVault drops a mapping and purges its cache namespace.
func (s *Service) RemoveVault(name string) error {
	if err := s.reg.Remove(name); err != nil {
		if s.NotifyPersistFailure != nil {
			s.NotifyPersistFailure(name, err)
		}
		return err
	}
	if err := s.cache.Purge(name); err != nil {
		s.logger.Warn("linkservice: cache purge failed",
			slog.String("vault", name),
			slog.String("error", err.Error()))
	}
	return nil
}

// ListVaults returns all mappings in insertion order.
func (s *Service) ListVaults() []registry.Mapping {
	return s.reg.List()
}

// LookupVault returns the mapping for name.
func (s *Service) LookupVault(name string) (registry.Mapping, bool) {
	return s.reg.Lookup(name)
}
