package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/mimir/internal/apperr"
)

func embedServer(t *testing.T, embeddings [][]float32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s, want /api/embed", r.URL.Path)
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: embeddings})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllama_EmbedBatch(t *testing.T) {
	want := [][]float32{{1, 0, 0}, {0, 1, 0}}
	var gotReq embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: want})
	}))
	defer srv.Close()

	o := NewOllama(Config{BaseURL: srv.URL, Model: "nomic-embed-text", Dimensions: 3})
	got, err := o.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("embeddings = %v, want %v", got, want)
	}
	if gotReq.Model != "nomic-embed-text" {
		t.Errorf("request model = %q, want %q", gotReq.Model, "nomic-embed-text")
	}
	if !reflect.DeepEqual(gotReq.Input, []string{"alpha", "beta"}) {
		t.Errorf("request input = %v", gotReq.Input)
	}
}

func TestOllama_EmptyInputSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request for empty input")
	}))
	defer srv.Close()

	o := NewOllama(Config{BaseURL: srv.URL, Model: "m", Dimensions: 3})
	got, err := o.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if got != nil {
		t.Errorf("embeddings = %v, want nil", got)
	}
}

func TestOllama_CountMismatch(t *testing.T) {
	srv := embedServer(t, [][]float32{{1, 0, 0}})

	o := NewOllama(Config{BaseURL: srv.URL, Model: "m", Dimensions: 3})
	_, err := o.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	if err == nil || !strings.Contains(err.Error(), "expected 2 embeddings, got 1") {
		t.Errorf("err = %v, want count mismatch", err)
	}
}

func TestOllama_DimensionMismatch(t *testing.T) {
	srv := embedServer(t, [][]float32{{1, 0}})

	o := NewOllama(Config{BaseURL: srv.URL, Model: "m", Dimensions: 3})
	_, err := o.EmbedBatch(context.Background(), []string{"alpha"})
	if err == nil || !strings.Contains(err.Error(), "dimensions") {
		t.Errorf("err = %v, want dimension mismatch", err)
	}
}

func TestOllama_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `model "m" not found`, http.StatusNotFound)
	}))
	defer srv.Close()

	o := NewOllama(Config{BaseURL: srv.URL, Model: "m", Dimensions: 3})
	_, err := o.EmbedBatch(context.Background(), []string{"alpha"})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %v, want status in message", err)
	}
}

func TestOllama_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	o := NewOllama(Config{BaseURL: srv.URL, Model: "m", Dimensions: 3})
	_, err := o.EmbedBatch(context.Background(), []string{"alpha"})
	if !errors.Is(err, apperr.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestOllama_Embed(t *testing.T) {
	srv := embedServer(t, [][]float32{{0.5, 0.5, 0}})

	o := NewOllama(Config{BaseURL: srv.URL, Model: "m", Dimensions: 3})
	vec, err := o.Embed(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !reflect.DeepEqual(vec, []float32{0.5, 0.5, 0}) {
		t.Errorf("vec = %v", vec)
	}
}
