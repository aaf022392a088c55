// Package ollama embeds text with a local Ollama server through chromem-go's embedding function.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/metrics"
)

const provider = "ollama"

// DefaultBaseURL is the API root of a local Ollama.
const DefaultBaseURL = "http://localhost:11434/api"

// Embedder implements domain.Embedder. Ollama has no batch call, so batches go through domain.BatchFallback.
type Embedder struct {
	embed      chromem.EmbeddingFunc
	model      string
	baseURL    string
	dimensions int
	http       *http.Client
}

// NewEmbedder creates an Ollama embedder. baseURL is the API root, e.g. http://localhost:11434/api.
func NewEmbedder(model, baseURL string, dimensions int) *Embedder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Embedder{
		embed:      chromem.NewEmbeddingFuncOllama(model, baseURL),
		model:      model,
		baseURL:    baseURL,
		dimensions: dimensions,
		http:       &http.Client{Timeout: 5 * time.Second},
	}
}

// Dimension returns the configured output width, 0 when unknown.
func (e *Embedder) Dimension() int {
	return e.dimensions
}

// Embed returns the normalized embedding of text. Ollama reports no token usage.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	vec, err := e.embed(ctx, text)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(provider, e.model, "api_error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("ollama embed: %w: %w", domain.ErrEmbeddingProviderError, err)
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider, e.model).Observe(time.Since(start).Seconds())
	return domain.EmbeddingResult{Embedding: vec}, nil
}

// HealthCheck lists the local models.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/tags", nil)
	if err != nil {
		return err
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama unhealthy: %s", resp.Status)
	}
	return nil
}
