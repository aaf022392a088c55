package ingest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/santoshnarayanan/sda/internal/chunker"
	"github.com/santoshnarayanan/sda/internal/repository/chromem"
	"github.com/santoshnarayanan/sda/internal/usecase/collection"
)

const testDim = 8

// letterEmbedder maps text to a byte histogram folded into testDim buckets. Never returns a zero vector.
type letterEmbedder struct {
	mu      sync.Mutex
	calls   int
	texts   []string
	failOn  int // 1-based EmbedMany call that fails; 0 = never
	failErr error
	dim     int
}

func (e *letterEmbedder) Dimension(context.Context) (int, error) {
	if e.dim > 0 {
		return e.dim, nil
	}
	return testDim, nil
}

func (e *letterEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.texts = append(e.texts, texts...)
	e.mu.Unlock()

	if e.failOn > 0 && call >= e.failOn {
		return nil, e.failErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorOf(t)
	}
	return out, nil
}

func vectorOf(text string) []float32 {
	v := make([]float32, testDim)
	v[0] = 1
	for i := 0; i < len(text); i++ {
		v[int(text[i])%testDim]++
	}
	return v
}

type fixture struct {
	svc   *Service
	index *collection.Service
	embed *letterEmbedder
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	repo := chromem.NewInMemory()
	index := collection.New(collection.Backend{Collections: repo, Points: repo, Search: repo})

	docs, err := chunker.NewSplitter(chunker.DocumentProfile)
	require.NoError(t, err)
	chat, err := chunker.NewSplitter(chunker.ChatProfile)
	require.NoError(t, err)

	embed := &letterEmbedder{}
	return &fixture{
		svc:   New(index, embed, docs, chat, opts, nil),
		index: index,
		embed: embed,
	}
}
