package answer

import (
	"context"

	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/domain/search/request"
)

// Retriever ranks chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, collection string, q request.Query) ([]domain.ScoredChunk, error)
}

// Generator produces text from a system instruction and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}
