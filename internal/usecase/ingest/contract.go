package ingest

import (
	"context"

	"github.com/santoshnarayanan/sda/internal/domain"
)

// Index is the write side of the index manager.
type Index interface {
	EnsureCollection(ctx context.Context, name string, dim int, recreate bool) (domain.Collection, error)
	Upsert(ctx context.Context, name string, points []domain.Point) error
}

// Embedder vectorizes chunk texts.
type Embedder interface {
	Dimension(ctx context.Context) (int, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}
