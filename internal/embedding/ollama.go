package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/starford/mimir/internal/apperr"
)

const defaultTimeout = 2 * time.Minute

// Config holds connection settings for an Ollama instance.
type Config struct {
	// BaseURL is the Ollama server root, e.g. http://localhost:11434.
	BaseURL string
	// Model is the embedding model name, e.g. nomic-embed-text.
	Model string
	// Dimensions is the expected vector width. Responses with a
	// different width are rejected.
	Dimensions int
	// Timeout bounds each HTTP round trip. Zero means a generous
	// default suited to cold model loads.
	Timeout time.Duration
}

// Ollama embeds text through the Ollama /api/embed endpoint.
type Ollama struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

var _ Service = (*Ollama)(nil)

// NewOllama creates a client for the given Ollama instance.
func NewOllama(cfg Config) *Ollama {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Ollama{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		dims:    cfg.Dimensions,
		client:  &http.Client{Timeout: timeout},
	}
}

// ModelName returns the configured model name.
func (o *Ollama) ModelName() string { return o.model }

// Dimensions returns the configured vector width.
func (o *Ollama) Dimensions() int { return o.dims }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedBatch sends all texts to Ollama in one request. The result has
// the same length and order as the input.
func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: ollama at %s: %w: %v", o.baseURL, apperr.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding: ollama returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	for i, vec := range result.Embeddings {
		if len(vec) != o.dims {
			return nil, fmt.Errorf("embedding: vector %d has %d dimensions, model %s should produce %d", i, len(vec), o.model, o.dims)
		}
	}
	return result.Embeddings, nil
}

// Embed embeds a single text.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
