package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/decorate"
	"github.com/starford/raido/internal/linkservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *linkservice.Service, dec *decorate.Decorator, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, dec)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Vault mappings.
	r.Get("/vaults", h.ListVaults)
	r.Put("/vaults/{name}", h.UpsertVault)
	r.Delete("/vaults/{name}", h.DeleteVault)

	// Link resolution.
	r.Get("/links/classify", h.ClassifyLink)
	r.Get("/links/fetch", h.FetchLink)

	// Document annotation.
	r.Post("/decorate", h.Decorate)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
