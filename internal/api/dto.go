package api

import (
	"github.com/starford/mimir/internal/corpus"
	"github.com/starford/mimir/internal/index"
	"github.com/starford/mimir/internal/memoryservice"
	"github.com/starford/mimir/internal/promote"
	"github.com/starford/mimir/internal/vectorstore"
)

// PromoteRequest is the request body for a promotion pass. Zero-value
// fields fall back to the server's configured defaults.
type PromoteRequest struct {
	DaysBack      int     `json:"days_back"`
	MinConfidence float64 `json:"min_confidence"`
	DryRun        bool    `json:"dry_run"`
}

// CleanupRequest is the request body for a cleanup pass.
type CleanupRequest struct {
	DaysToKeep *int `json:"days_to_keep"`
}

// CleanupResponse reports a cleanup pass.
type CleanupResponse struct {
	Removed    int `json:"removed"`
	DaysToKeep int `json:"days_to_keep"`
}

// AppendLogRequest is the request body for appending to today's log.
type AppendLogRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// AppendLogResponse reports where the entry landed.
type AppendLogResponse struct {
	Path string `json:"path"`
}

// DocumentListResponse wraps the corpus document listing.
type DocumentListResponse struct {
	Documents []corpus.Document `json:"documents"`
	Total     int               `json:"total"`
}

// SearchResponse wraps semantic search hits.
type SearchResponse struct {
	Query   string            `json:"query"`
	Results []vectorstore.Hit `json:"results"`
}

// DocumentDetail is the full document response (aliased from the
// domain layer).
type DocumentDetail = memoryservice.DocumentDetail

// StatusResponse is the store snapshot (aliased from the domain layer).
type StatusResponse = memoryservice.Status

// PromoteResponse is the promotion result (aliased from the domain layer).
type PromoteResponse = promote.Result

// ReindexResponse is the synchronization result (aliased from the
// domain layer).
type ReindexResponse = index.Stats

// MaintainResponse is the maintenance result (aliased from the domain
// layer).
type MaintainResponse = memoryservice.MaintainResult
