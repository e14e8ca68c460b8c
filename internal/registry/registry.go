// Package registry owns the persisted mapping from vault names to filesystem
// roots and per-vault cache policy. It is the single source of truth for
// vault mappings; every consumer receives a *Registry at construction rather
// than reaching one through ambient state.
package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/raido/internal/kvstore"
)

// Cache policies.
const (
	CachePolicyDisabled = "disabled"
	CachePolicyEnabled  = "enabled"
)

// settingsKey is the key the registry document is stored under in the
// settings store.
const settingsKey = "vaultMappings"

// Mapping associates a vault name with its filesystem root.
//
// Path may be relative; relative paths are resolved against the current
// vault's root at lookup time, not at save time.
type Mapping struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	CachePolicy string `json:"cachePolicy"`
	Description string `json:"description,omitempty"`
}

// Validate validates the mapping.
func (m Mapping) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required),
		validation.Field(&m.Path, validation.Required),
		validation.Field(&m.CachePolicy, validation.Required,
			validation.In(CachePolicyDisabled, CachePolicyEnabled)),
	)
}

// CacheEnabled reports whether resolved files from this vault are mirrored
// locally.
func (m Mapping) CacheEnabled() bool {
	return m.CachePolicy == CachePolicyEnabled
}

// document is the persisted JSON shape. Loading and re-saving without
// modification produces an equivalent document.
type document struct {
	VaultMappings []Mapping `json:"vaultMappings"`
}

// Store is the scoped load/save pair the registry persists through.
type Store interface {
	// Load returns the stored document. ok is false when nothing has been
	// saved yet.
	Load() (doc string, ok bool, err error)
	// Save replaces the stored document atomically.
	Save(doc string) error
}

// sqliteStore adapts the settings database to the Store interface.
type sqliteStore struct {
	db *kvstore.DB
}

// NewSQLiteStore returns a Store backed by the settings database.
func NewSQLiteStore(db *kvstore.DB) Store {
	return sqliteStore{db: db}
}

func (s sqliteStore) Load() (string, bool, error) { return s.db.Get(settingsKey) }
func (s sqliteStore) Save(doc string) error       { return s.db.Put(settingsKey, doc) }

// Registry holds the ordered list of vault mappings, semantically a set keyed
// by name. Insertion order is preserved for display only. All mutations are
// serialized behind one mutex and persist before returning.
type Registry struct {
	mu       sync.RWMutex
	store    Store
	mappings []Mapping
	onChange func(op, name string)
}

// Open loads the persisted registry document from store.
func Open(store Store) (*Registry, error) {
	doc, ok, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("registry: load: %w", err)
	}
	r := &Registry{store: store}
	if ok && doc != "" {
		var d document
		if err := json.Unmarshal([]byte(doc), &d); err != nil {
			return nil, fmt.Errorf("registry: decode: %w", err)
		}
		r.mappings = d.VaultMappings
	}
	return r, nil
}

// SetOnChange registers a hook invoked after every successfully persisted
// mutation, with op "upserted" or "removed". Call before sharing the registry.
func (r *Registry) SetOnChange(fn func(op, name string)) {
	r.onChange = fn
}

// Lookup returns the mapping for name. Exact, case-sensitive match only.
func (r *Registry) Lookup(name string) (Mapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.mappings {
		if m.Name == name {
			return m, true
		}
	}
	return Mapping{}, false
}

// Upsert validates m, replaces any existing entry with the same name (or
// appends), and persists before returning. On persist failure the in-memory
// state is rolled back so it keeps matching the stored document.
func (r *Registry) Upsert(m Mapping) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("registry: invalid mapping: %w", err)
	}

	r.mu.Lock()
	prev := r.mappings
	next := make([]Mapping, len(prev))
	copy(next, prev)

	replaced := false
	for i := range next {
		if next[i].Name == m.Name {
			next[i] = m
			replaced = true
			break
		}
	}
	if !replaced {
		next = append(next, m)
	}

	r.mappings = next
	if err := r.persistLocked(); err != nil {
		r.mappings = prev
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange("upserted", m.Name)
	}
	return nil
}

// Remove deletes the entry for name, a no-op if absent.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	idx := -1
	for i, m := range r.mappings {
		if m.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return nil
	}

	prev := r.mappings
	next := make([]Mapping, 0, len(prev)-1)
	next = append(next, prev[:idx]...)
	next = append(next, prev[idx+1:]...)

	r.mappings = next
	if err := r.persistLocked(); err != nil {
		r.mappings = prev
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange("removed", name)
	}
	return nil
}

// List returns the mappings in insertion order.
func (r *Registry) List() []Mapping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Mapping, len(r.mappings))
	copy(out, r.mappings)
	return out
}

// persistLocked encodes and saves the current document. Callers hold mu.
func (r *Registry) persistLocked() error {
	mappings := r.mappings
	if mappings == nil {
		mappings = []Mapping{}
	}
	raw, err := json.Marshal(document{VaultMappings: mappings})
	if err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}
	if err := r.store.Save(string(raw)); err != nil {
		return fmt.Errorf("registry: save: %w", err)
	}
	return nil
}
