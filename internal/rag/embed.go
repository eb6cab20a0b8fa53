package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// Prefixes are part of the retrieval contract: the document side and
	// the query side must use the same pair or recall collapses.
	documentPrefix = "search_document: "
	queryPrefix    = "search_query: "
)

// Embedder produces dense vectors of a fixed dimension. Implementations
// are not required to be safe for concurrent use; the Store serializes
// access behind a mutex.
type Embedder interface {
	// EmbedDocuments embeds ingest-side texts, one vector per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a search-side query string.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	// Dimension reports the vector length the model produces.
	Dimension() int
}

// HTTPEmbedder talks to an OpenAI-compatible /v1/embeddings endpoint
// (llama.cpp server or Ollama serving a nomic-embed-text model).
type HTTPEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewHTTPEmbedder creates an embedder against the given base URL.
func NewHTTPEmbedder(baseURL, model string, timeout time.Duration) *HTTPEmbedder {
	if timeout == 0 {
		timeout = 180 * time.Second
	}
	return &HTTPEmbedder{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *HTTPEmbedder) Dimension() int { return EmbedDim }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedDocuments embeds a batch of document texts with the document
// prefix applied.
func (e *HTTPEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = documentPrefix + t
	}
	return e.embed(ctx, prefixed)
}

// EmbedQuery embeds a single query string with the query prefix applied.
func (e *HTTPEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{queryPrefix + query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: empty embedding result", ErrEmbed)
	}
	return vecs[0], nil
}

func (e *HTTPEmbedder) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: e.model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: embedding endpoint returned %d: %s", ErrEmbed, resp.StatusCode, string(b))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrEmbed, err)
	}
	if len(parsed.Data) != len(inputs) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrEmbed, len(parsed.Data), len(inputs))
	}

	out := make([][]float32, len(inputs))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbed, d.Index)
		}
		if len(d.Embedding) != EmbedDim {
			return nil, fmt.Errorf("%w: got dimension %d, expected %d", ErrEmbed, len(d.Embedding), EmbedDim)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
