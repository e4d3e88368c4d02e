// Package memoryservice is the orchestration facade over the
// knowledge store: promotion, cleanup, index synchronization, semantic
// search, log appends, and document reads share one service so every
// surface (HTTP, MCP, CLI, watcher) goes through the same code path.
package memoryservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/checksum"
	"github.com/starford/mimir/internal/corpus"
	"github.com/starford/mimir/internal/embedding"
	"github.com/starford/mimir/internal/index"
	"github.com/starford/mimir/internal/promote"
	"github.com/starford/mimir/internal/vectorstore"
)

// DefaultSearchK is the result count used when a caller passes k <= 0.
const DefaultSearchK = 3

// DocumentDetail is the full representation of one corpus document.
type DocumentDetail struct {
	Path      string      `json:"path"`
	Kind      corpus.Kind `json:"kind"`
	Content   string      `json:"content"`
	Checksum  string      `json:"checksum"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Status is a point-in-time snapshot of the store.
type Status struct {
	Documents      map[corpus.Kind]int `json:"documents"`
	IndexedChunks  int                 `json:"indexed_chunks"`
	EmbeddingModel string              `json:"embedding_model"`
	GraphPath      string              `json:"graph_path,omitempty"`
}

// MaintainResult bundles the two phases of a maintenance run.
type MaintainResult struct {
	Timestamp time.Time       `json:"timestamp"`
	Promotion *promote.Result `json:"promotion"`
	Indexing  *index.Stats    `json:"indexing,omitempty"`
}

// Service coordinates the promotion engine, the index synchronizer,
// and the corpus. A single mutex serializes every pass that
// read-modify-writes the summary document or rewrites the vector
// store, so concurrent HTTP/MCP/watcher calls cannot interleave two
// passes.
type Service struct {
	corpus    corpus.Provider
	engine    *promote.Engine
	sync      *index.Synchronizer
	store     vectorstore.Store
	embedder  embedding.Service
	graphPath string
	logger    *slog.Logger

	mu sync.Mutex
}

// New creates a memory service. graphPath is informational, surfaced
// in Status; pass the empty string when graph persistence is disabled.
func New(c corpus.Provider, e *promote.Engine, s *index.Synchronizer, vs vectorstore.Store, emb embedding.Service, graphPath string, logger *slog.Logger) *Service {
	return &Service{
		corpus:    c,
		engine:    e,
		sync:      s,
		store:     vs,
		embedder:  emb,
		graphPath: graphPath,
		logger:    logger,
	}
}

// Promote runs one promotion pass over recent daily logs.
func (s *Service) Promote(ctx context.Context, p promote.Params) (*promote.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Promote(ctx, p)
}

// Cleanup expires old auto-promoted entries, returning the number of
// removed lines.
func (s *Service) Cleanup(ctx context.Context, daysToKeep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Cleanup(ctx, daysToKeep)
}

// Reindex runs one full index synchronization pass.
func (s *Service) Reindex(ctx context.Context) (*index.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sync.Sync(ctx)
}

// Maintain is the daily maintenance flow: promote, then re-index.
// With DryRun the indexing phase is skipped entirely. An indexing
// failure is returned as the error but the promotion already applied
// stays in place; the partial result accompanies the error.
func (s *Service) Maintain(ctx context.Context, p promote.Params) (*MaintainResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &MaintainResult{Timestamp: time.Now()}

	pr, err := s.engine.Promote(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("memoryservice: maintain promotion: %w", err)
	}
	res.Promotion = pr

	if p.DryRun {
		return res, nil
	}

	stats, err := s.sync.Sync(ctx)
	if err != nil {
		return res, fmt.Errorf("memoryservice: maintain reindex: %w", err)
	}
	res.Indexing = stats
	return res, nil
}

// Search embeds the query and returns the k nearest indexed chunks.
func (s *Service) Search(ctx context.Context, query string, k int) ([]vectorstore.Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("memoryservice: empty query: %w", apperr.ErrInvalid)
	}
	if k <= 0 {
		k = DefaultSearchK
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("memoryservice: embed query: %w", err)
	}
	hits, err := s.store.Query(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("memoryservice: query store: %w", err)
	}
	if hits == nil {
		hits = []vectorstore.Hit{}
	}
	return hits, nil
}

// AppendLog appends a titled section to today's dated log, creating
// the log when absent. An empty title defaults to the current HH:MM
// time. Returns the log's relative path.
func (s *Service) AppendLog(_ context.Context, title, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("memoryservice: empty log content: %w", apperr.ErrInvalid)
	}

	now := time.Now()
	if strings.TrimSpace(title) == "" {
		title = now.Format("15:04")
	}

	path := s.corpus.LogPath(now)

	existing, err := s.corpus.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("memoryservice: read log: %w", err)
	}

	entry := "\n## " + strings.TrimSpace(title) + "\n\n" + strings.TrimSpace(content) + "\n"
	if err := s.corpus.Write(path, append(existing, entry...)); err != nil {
		return "", fmt.Errorf("memoryservice: append log: %w", err)
	}

	s.logger.Info("log appended", slog.String("path", path), slog.String("title", title))
	return path, nil
}

// Documents lists every corpus document in the fixed enumeration
// order.
func (s *Service) Documents(_ context.Context) ([]corpus.Document, error) {
	docs, err := s.corpus.Documents()
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []corpus.Document{}
	}
	return docs, nil
}

// Document reads one corpus document by relative path.
func (s *Service) Document(_ context.Context, path string) (*DocumentDetail, error) {
	docs, err := s.corpus.Documents()
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.Path != path {
			continue
		}
		data, err := s.corpus.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, apperr.ErrNotFound
			}
			return nil, err
		}
		return &DocumentDetail{
			Path:      d.Path,
			Kind:      d.Kind,
			Content:   string(data),
			Checksum:  checksum.Sum(data),
			UpdatedAt: d.UpdatedAt,
		}, nil
	}
	return nil, apperr.ErrNotFound
}

// Summary reads the durable summary document. An absent summary is an
// empty document, not an error.
func (s *Service) Summary(_ context.Context) (string, error) {
	data, err := s.corpus.Read(s.corpus.SummaryPath())
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Status reports corpus and index counts.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	docs, err := s.corpus.Documents()
	if err != nil {
		return nil, err
	}
	counts := map[corpus.Kind]int{
		corpus.KindSummary:   0,
		corpus.KindReference: 0,
		corpus.KindLog:       0,
	}
	for _, d := range docs {
		counts[d.Kind]++
	}

	chunks, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("memoryservice: count chunks: %w", err)
	}

	return &Status{
		Documents:      counts,
		IndexedChunks:  chunks,
		EmbeddingModel: s.embedder.ModelName(),
		GraphPath:      s.graphPath,
	}, nil
}
