package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/memoryservice"
	"github.com/starford/mimir/internal/promote"
	"github.com/starford/mimir/internal/sse"
)

// Defaults holds the configured fallbacks applied when a request
// leaves a knob unset.
type Defaults struct {
	DaysBack      int
	MinConfidence float64
	DaysToKeep    int
	SearchK       int
}

// Handler holds API route handlers.
type Handler struct {
	svc      *memoryservice.Service
	broker   *sse.Broker
	defaults Defaults
}

// NewHandler creates a new Handler. broker may be nil; events are then
// simply not published.
func NewHandler(svc *memoryservice.Service, broker *sse.Broker, defaults Defaults) *Handler {
	return &Handler{svc: svc, broker: broker, defaults: defaults}
}

func (h *Handler) publish(event sse.Event) {
	if h.broker != nil {
		h.broker.Publish(event)
	}
}

// docPath extracts the document path from the URL (everything after
// /api/documents/). Supports encoded slashes from generated clients
// (e.g. memory%2F2025-06-15.md).
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		slog.Error("status failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListDocuments handles GET /api/documents.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.Documents(r.Context())
	if err != nil {
		slog.Error("list documents failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Total: len(docs)})
}

// GetDocument handles GET /api/documents/*.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.svc.Document(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get document failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	k, _ := strconv.Atoi(r.URL.Query().Get("k"))
	if k <= 0 {
		k = h.defaults.SearchK
	}

	hits, err := h.svc.Search(r.Context(), q, k)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalid) {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid query"))
			return
		}
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, errorBody("search unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Results: hits})
}

// AppendLog handles POST /api/logs.
func (h *Handler) AppendLog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req AppendLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	path, err := h.svc.AppendLog(r.Context(), req.Title, req.Content)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalid) {
			writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
			return
		}
		slog.Error("append log failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	h.publish(sse.Event{Type: sse.EventLog, Data: AppendLogResponse{Path: path}})
	writeJSON(w, http.StatusCreated, AppendLogResponse{Path: path})
}

// Promote handles POST /api/promote.
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	params, ok := h.promoteParams(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Promote(r.Context(), params)
	if err != nil {
		slog.Error("promote failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	if !res.DryRun && res.PromotionsMade > 0 {
		h.publish(sse.Event{Type: sse.EventPromotion, Data: res})
	}
	writeJSON(w, http.StatusOK, res)
}

// Cleanup handles POST /api/cleanup.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	daysToKeep := h.defaults.DaysToKeep

	var req CleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.DaysToKeep != nil {
		daysToKeep = *req.DaysToKeep
	}
	if daysToKeep < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("days_to_keep must be >= 0"))
		return
	}

	removed, err := h.svc.Cleanup(r.Context(), daysToKeep)
	if err != nil {
		slog.Error("cleanup failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	resp := CleanupResponse{Removed: removed, DaysToKeep: daysToKeep}
	if removed > 0 {
		h.publish(sse.Event{Type: sse.EventCleanup, Data: resp})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reindex handles POST /api/reindex.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Reindex(r.Context())
	if err != nil {
		slog.Error("reindex failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, errorBody("reindex failed"))
		return
	}
	if h.broker != nil {
		h.broker.PublishIndexUpdated(stats)
	}
	writeJSON(w, http.StatusOK, stats)
}

// Maintain handles POST /api/maintenance: promote, then reindex.
func (h *Handler) Maintain(w http.ResponseWriter, r *http.Request) {
	params, ok := h.promoteParams(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Maintain(r.Context(), params)
	if err != nil {
		slog.Error("maintenance failed", slog.String("error", err.Error()))
		// A reindex failure still carries the applied promotion result.
		if res != nil {
			writeJSON(w, http.StatusServiceUnavailable, res)
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	if res.Promotion != nil && !res.Promotion.DryRun && res.Promotion.PromotionsMade > 0 {
		h.publish(sse.Event{Type: sse.EventPromotion, Data: res.Promotion})
	}
	if res.Indexing != nil && h.broker != nil {
		h.broker.PublishIndexUpdated(res.Indexing)
	}
	writeJSON(w, http.StatusOK, res)
}

// promoteParams decodes an optional PromoteRequest body and applies
// configured defaults. An empty body is valid.
func (h *Handler) promoteParams(w http.ResponseWriter, r *http.Request) (promote.Params, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	// An absent body means "use the configured defaults"; malformed
	// JSON is still rejected.
	var req PromoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return promote.Params{}, false
	}

	params := promote.Params{
		DaysBack:      req.DaysBack,
		MinConfidence: req.MinConfidence,
		DryRun:        req.DryRun,
	}
	if params.DaysBack <= 0 {
		params.DaysBack = h.defaults.DaysBack
	}
	if params.MinConfidence <= 0 {
		params.MinConfidence = h.defaults.MinConfidence
	}
	return params, true
}
