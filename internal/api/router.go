package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mimir/internal/memoryservice"
	"github.com/starford/mimir/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, is mounted at GET /events inside the auth group
// and receives promotion/cleanup/log/index events.
func NewRouter(svc *memoryservice.Service, authEnabled bool, token string, broker *sse.Broker, defaults Defaults) chi.Router {
	h := NewHandler(svc, broker, defaults)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Store snapshot.
	r.Get("/status", h.Status)

	// Corpus documents (read-only; logs are the write path).
	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/*", h.GetDocument)

	// Semantic search.
	r.Get("/search", h.Search)

	// Daily-log append.
	r.Post("/logs", h.AppendLog)

	// Promotion, cleanup, index maintenance.
	r.Post("/promote", h.Promote)
	r.Post("/cleanup", h.Cleanup)
	r.Post("/reindex", h.Reindex)
	r.Post("/maintenance", h.Maintain)

	// SSE endpoint (protected by same auth middleware).
	if broker != nil {
		r.Get("/events", http.HandlerFunc(broker.ServeHTTP))
	}

	return r
}
