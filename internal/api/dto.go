package api

import (
	"github.com/starford/raido/internal/decorate"
	"github.com/starford/raido/internal/registry"
)

// UpsertVaultRequest is the request body for mapping a vault.
type UpsertVaultRequest struct {
	Path        string `json:"path"`
	CachePolicy string `json:"cachePolicy"`
	Description string `json:"description,omitempty"`
}

// VaultListResponse wraps the registered mappings in insertion order.
type VaultListResponse struct {
	Vaults []registry.Mapping `json:"vaults"`
	Total  int                `json:"total"`
}

// FetchResponse carries resolved link content and its provenance.
type FetchResponse struct {
	Vault   string `json:"vault"`
	File    string `json:"file"`
	Origin  string `json:"origin"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// DecorateRequest is the request body for annotating rendered content.
type DecorateRequest struct {
	Content string `json:"content"`
}

// DecorateResponse wraps the annotations for one document.
type DecorateResponse struct {
	Occurrences []decorate.Occurrence `json:"occurrences"`
	Total       int                   `json:"total"`
}
