package request

import (
	"fmt"
	"strings"

	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/domain/search/filter"
)

// Query limits.
const (
	MaxQueryLength = 4096
	MinTopK        = 1
	MaxTopK        = 20
)

// Query is a validated retrieval request.
type Query struct {
	text         string
	topK         int
	rerank       bool
	filters      filter.Expression
	languageHint string
}

// New validates a retrieval request. Blank text and top_k outside [1,20] are rejected.
func New(text string, topK int, rerank bool, filters filter.Expression, languageHint string) (Query, error) {
	if strings.TrimSpace(text) == "" {
		return Query{}, fmt.Errorf("%w: prompt text is required", domain.ErrInvalidQuery)
	}
	if len(text) > MaxQueryLength {
		return Query{}, fmt.Errorf("%w: prompt too long (max %d bytes)", domain.ErrInvalidQuery, MaxQueryLength)
	}
	if topK < MinTopK || topK > MaxTopK {
		return Query{}, fmt.Errorf("%w: top_k must be between %d and %d, got %d",
			domain.ErrInvalidQuery, MinTopK, MaxTopK, topK)
	}
	return Query{
		text:         text,
		topK:         topK,
		rerank:       rerank,
		filters:      filters,
		languageHint: languageHint,
	}, nil
}

// Text returns the prompt text.
func (q Query) Text() string { return q.text }

// TopK returns the number of chunks to return.
func (q Query) TopK() int { return q.topK }

// Rerank reports whether lexical and fuzzy signals are combined with the dense score.
func (q Query) Rerank() bool { return q.rerank }

// Filters returns the equality filter.
func (q Query) Filters() filter.Expression { return q.filters }

// LanguageHint returns the caller's content language hint, possibly empty.
func (q Query) LanguageHint() string { return q.languageHint }
