// Package embedding turns text into vectors via an embedding model.
package embedding

import "context"

// Service produces vector embeddings for text. Implementations must
// return one vector per input, in input order.
type Service interface {
	// EmbedBatch embeds all texts in a single round trip.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Embed embeds a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// ModelName reports the model used for embedding.
	ModelName() string
	// Dimensions reports the width of the vectors this service produces.
	Dimensions() int
}
