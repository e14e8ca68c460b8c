package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/decorate"
	"github.com/starford/raido/internal/linkservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *linkservice.Service
	dec *decorate.Decorator
}

// NewHandler creates a new Handler.
func NewHandler(svc *linkservice.Service, dec *decorate.Decorator) *Handler {
	return &Handler{svc: svc, dec: dec}
}

// vaultName extracts the vault name from the URL, tolerating encoded names.
func vaultName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListVaults handles GET /api/vaults.
func (h *Handler) ListVaults(w http.ResponseWriter, _ *http.Request) {
	vaults := h.svc.ListVaults()
	writeJSON(w, http.StatusOK, VaultListResponse{Vaults: vaults, Total: len(vaults)})
}

// UpsertVault handles PUT /api/vaults/{name}.
func (h *Handler) UpsertVault(w http.ResponseWriter, r *http.Request) {
	name := vaultName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("vault name is required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req UpsertVaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	if err := h.svc.MapVault(name, req.Path, req.CachePolicy, req.Description); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		// Validation errors and persist failures both land here; the body
		// carries enough detail for the settings UI to distinguish.
		slog.Error("upsert vault failed", slog.String("name", name), slog.String("error", err.Error()))
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to save mapping"))
		return
	}

	m, _ := h.svc.LookupVault(name)
	writeJSON(w, http.StatusOK, m)
}

// DeleteVault handles DELETE /api/vaults/{name}.
func (h *Handler) DeleteVault(w http.ResponseWriter, r *http.Request) {
	name := vaultName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("vault name is required"))
		return
	}
	if err := h.svc.RemoveVault(name); err != nil {
		slog.Error("delete vault failed", slog.String("name", name), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to remove mapping"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClassifyLink handles GET /api/links/classify.
func (h *Handler) ClassifyLink(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("uri is required"))
		return
	}
	cls, err := h.svc.Classify(uri)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("unrecognized link"))
		return
	}
	writeJSON(w, http.StatusOK, cls)
}

// FetchLink handles GET /api/links/fetch.
func (h *Handler) FetchLink(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("uri is required"))
		return
	}

	res, err := h.svc.Fetch(uri)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrParse):
			writeJSON(w, http.StatusBadRequest, errorBody("unrecognized link"))
		case errors.Is(err, apperr.ErrUnmappedVault):
			writeJSON(w, http.StatusNotFound, errorBody("vault not mapped"))
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		default:
			slog.Error("fetch link failed", slog.String("uri", uri), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	cls, _ := h.svc.Classify(uri)
	writeJSON(w, http.StatusOK, FetchResponse{
		Vault:   cls.Vault,
		File:    cls.File,
		Origin:  string(res.Origin),
		Path:    res.Path,
		Content: string(res.Content),
	})
}

// Decorate handles POST /api/decorate.
func (h *Handler) Decorate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req DecorateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	occ := h.dec.Decorate(req.Content)
	writeJSON(w, http.StatusOK, DecorateResponse{Occurrences: occ, Total: len(occ)})
}

// isValidationError distinguishes mapping validation failures from persist
// failures so they map to 400 rather than 500.
func isValidationError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "invalid mapping")
}
