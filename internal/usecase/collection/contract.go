package collection

import (
	"context"

	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/domain/search/filter"
)

// Repository defines the storage contract for collection metadata.
type Repository interface {
	Create(ctx context.Context, col domain.Collection) error
	Get(ctx context.Context, name string) (domain.Collection, error)
	Delete(ctx context.Context, name string) error
}

// PointWriter writes points into an existing collection.
type PointWriter interface {
	// Upsert stores the batch so that callers observe all of it or none of it.
	Upsert(ctx context.Context, col domain.Collection, points []domain.Point) error
	Count(ctx context.Context, name string) (int, error)
}

// Searcher runs k-nearest-neighbour queries.
type Searcher interface {
	Search(ctx context.Context, col domain.Collection, vector []float32, k int, filters filter.Expression) ([]domain.Hit, error)
}

// Backend bundles one vector index implementation.
type Backend struct {
	Collections Repository
	Points      PointWriter
	Search      Searcher
}
