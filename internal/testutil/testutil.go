// Package testutil provides shared test helpers for setting up corpus
// roots and wired services.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/mimir/internal/corpus"
	"github.com/starford/mimir/internal/graph"
	"github.com/starford/mimir/internal/index"
	"github.com/starford/mimir/internal/memoryservice"
	"github.com/starford/mimir/internal/promote"
	"github.com/starford/mimir/internal/scoring"
	"github.com/starford/mimir/internal/vectorstore"
)

// Logger returns a logger that only surfaces errors, keeping test
// output readable.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Corpus creates a temporary corpus root with the default layout.
func Corpus(t *testing.T) (string, *corpus.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := corpus.NewFS(root, corpus.DefaultLayout())
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// WriteDoc writes one corpus document, failing the test on error.
func WriteDoc(t *testing.T, store corpus.Provider, path, content string) {
	t.Helper()
	if err := store.Write(path, []byte(content)); err != nil {
		t.Fatal(err)
	}
}

// StubEmbedder is a deterministic embedding.Service double: the vector
// depends only on the text length, so identical corpora embed
// identically across runs.
type StubEmbedder struct {
	Err error
}

func (s *StubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = []float32{float32(len(text)), 1, 0}
	}
	return vecs, nil
}

func (s *StubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *StubEmbedder) ModelName() string { return "stub-model" }
func (s *StubEmbedder) Dimensions() int   { return 3 }

// Service wires a full memory service on a temporary corpus with an
// in-memory vector store, a stub embedder, and no graph persistence.
func Service(t *testing.T) (*memoryservice.Service, *corpus.FS) {
	t.Helper()
	_, store := Corpus(t)
	logger := Logger()

	vs := vectorstore.NewMemory()
	emb := &StubEmbedder{}
	sync := index.NewSynchronizer(store, emb, vs, graph.Noop{}, logger)
	engine := promote.NewEngine(store, scoring.KeywordScorer{}, logger)

	svc := memoryservice.New(store, engine, sync, vs, emb, "", logger)
	return svc, store
}
