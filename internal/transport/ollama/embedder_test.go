package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santoshnarayanan/sda/internal/domain"
)

func TestEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{3, 4}})
	}))
	defer srv.Close()

	e := NewEmbedder("nomic-embed-text", srv.URL+"/api", 2)
	assert.Equal(t, 2, e.Dimension())

	res, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, res.Embedding, 2)
	// chromem normalizes Ollama output to unit length.
	assert.InDelta(t, 0.6, res.Embedding[0], 1e-6)
	assert.InDelta(t, 0.8, res.Embedding[1], 1e-6)
}

func TestEmbedder_EmbedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewEmbedder("m", srv.URL+"/api", 0).Embed(context.Background(), "hello")
	assert.True(t, errors.Is(err, domain.ErrEmbeddingProviderError))
}

func TestEmbedder_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.NoError(t, NewEmbedder("m", srv.URL+"/api/", 0).HealthCheck(context.Background()))
	assert.Error(t, NewEmbedder("m", srv.URL+"/nope", 0).HealthCheck(context.Background()))
}
