package retrieval

import (
	"context"

	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/domain/search/filter"
)

// Index is the read side of the index manager.
type Index interface {
	Search(ctx context.Context, name string, vector []float32, k int, filters filter.Expression) ([]domain.Hit, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Scorer rates every candidate against the query. The result is parallel to candidates.
type Scorer interface {
	Score(query string, candidates []domain.Hit) []float64
}
