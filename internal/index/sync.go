// Package index keeps the vector store and the relationship graph in
// step with the markdown corpus.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/starford/mimir/internal/checksum"
	"github.com/starford/mimir/internal/chunker"
	"github.com/starford/mimir/internal/corpus"
	"github.com/starford/mimir/internal/embedding"
	"github.com/starford/mimir/internal/graph"
	"github.com/starford/mimir/internal/vectorstore"
)

// Stats summarizes one synchronization pass.
type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Removed   int `json:"removed"`
}

// Synchronizer rebuilds the vector store and relationship graph from
// the corpus.
type Synchronizer struct {
	corpus   corpus.Provider
	embedder embedding.Service
	store    vectorstore.Store
	graph    graph.Builder
	logger   *slog.Logger
}

// NewSynchronizer wires a synchronizer from its collaborators.
func NewSynchronizer(c corpus.Provider, e embedding.Service, vs vectorstore.Store, g graph.Builder, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{corpus: c, embedder: e, store: vs, graph: g, logger: logger}
}

// chunkID returns the id for the chunk at position i in the corpus
// enumeration.
func chunkID(i int) string { return fmt.Sprintf("mem_%d", i) }

// Sync re-chunks every corpus document, re-embeds all chunks in one
// batched call, upserts them under positional ids (mem_0, mem_1, ...)
// and deletes the trailing id range left over when the corpus shrank.
//
// Ids are positional: editing an early document shifts the ids of
// every later chunk, so a pass always rewrites the whole store rather
// than updating single documents.
func (s *Synchronizer) Sync(ctx context.Context) (*Stats, error) {
	docs, err := s.corpus.Documents()
	if err != nil {
		return nil, fmt.Errorf("index: list corpus: %w", err)
	}

	stats := &Stats{}
	var chunks []chunker.Chunk
	for _, doc := range docs {
		data, err := s.corpus.Read(doc.Path)
		if err != nil {
			// Listed a moment ago but already gone. Skip it; the next
			// pass sees the settled state.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("index: read %s: %w", doc.Path, err)
		}
		stats.Documents++
		fileChunks := chunker.Split(doc.Path, string(data))
		s.logger.Debug("sync: chunked",
			slog.String("path", doc.Path),
			slog.Int("chunks", len(fileChunks)),
			slog.String("checksum", checksum.Short(data)))
		chunks = append(chunks, fileChunks...)
	}
	stats.Chunks = len(chunks)

	if len(chunks) == 0 {
		s.logger.Warn("sync: no content found")
		return stats, nil
	}

	if err := s.graph.Rebuild(ctx, chunks); err != nil {
		s.logger.Warn("sync: graph rebuild failed", slog.String("error", err.Error()))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("index: embed %d chunks: %w", len(chunks), err)
	}

	records := make([]vectorstore.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorstore.Record{
			ID:        chunkID(i),
			Document:  c.Content,
			Embedding: vecs[i],
			Source:    c.Source,
			Section:   c.Section,
		}
	}
	if err := s.store.Upsert(ctx, records); err != nil {
		return nil, fmt.Errorf("index: upsert chunks: %w", err)
	}

	existing, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("index: count records: %w", err)
	}
	if existing > len(chunks) {
		orphans := make([]string, 0, existing-len(chunks))
		for i := len(chunks); i < existing; i++ {
			orphans = append(orphans, chunkID(i))
		}
		if err := s.store.Delete(ctx, orphans); err != nil {
			return nil, fmt.Errorf("index: delete orphans: %w", err)
		}
		stats.Removed = len(orphans)
		s.logger.Debug("sync: removed orphans", slog.Int("count", stats.Removed))
	}

	s.logger.Info("sync: complete",
		slog.Int("documents", stats.Documents),
		slog.Int("chunks", stats.Chunks),
		slog.Int("removed", stats.Removed))
	return stats, nil
}
