package embcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/santoshnarayanan/sda/internal/db"
	"github.com/santoshnarayanan/sda/internal/domain"
)

const testPrefix = "sda:_emb:openai:test-model:"

// lengthEmbedder embeds a text as [len(text), 1] and counts the texts it was asked for.
type lengthEmbedder struct {
	mu      sync.Mutex
	asked   []string
	batches int
	err     error
}

func (e *lengthEmbedder) vec(text string) []float32 { return []float32{float32(len(text)), 1} }

func (e *lengthEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.asked = append(e.asked, text)
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: e.vec(text), TotalTokens: 1}, nil
}

func (e *lengthEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches++
	e.asked = append(e.asked, texts...)
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, e.err
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts)), TotalTokens: len(texts)}
	for i, t := range texts {
		out.Embeddings[i] = e.vec(t)
	}
	return out, nil
}

func (e *lengthEmbedder) Dimension() int { return 2 }

// memKV is an in-memory key-value store; getErr and setErr simulate an unreachable cache.
type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

var errUnreachable = errors.New("connection refused")

func newCache(t *testing.T) (*CachedEmbedder, *lengthEmbedder, *memKV) {
	t.Helper()
	inner := &lengthEmbedder{}
	kv := newMemKV()
	return New(inner, kv, testPrefix, 24*time.Hour, nil, zap.NewNop()), inner, kv
}
