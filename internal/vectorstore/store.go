// Package vectorstore persists chunk embeddings behind a small
// key-value-with-similarity-query interface. Identities are caller
// assigned strings; the store never invents or renumbers them.
package vectorstore

import "context"

// Record is one stored chunk: its identity, raw text, embedding, and
// location metadata.
type Record struct {
	ID        string
	Document  string
	Embedding []float32
	Source    string
	Section   string
}

// Hit is one similarity-query result. Lower distance is closer.
type Hit struct {
	ID       string  `json:"id"`
	Document string  `json:"document"`
	Source   string  `json:"source"`
	Section  string  `json:"section"`
	Distance float64 `json:"distance"`
}

// Store is the vector-store collaborator contract. Upsert fully
// replaces an existing id's record and inserts new ids.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, ids []string) error
	Query(ctx context.Context, embedding []float32, k int) ([]Hit, error)
	Close() error
}
