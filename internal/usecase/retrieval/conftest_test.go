package retrieval

import (
	"context"

	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/domain/search/filter"
)

type fakeIndex struct {
	hits    []domain.Hit
	err     error
	gotK    int
	gotName string
	gotExpr filter.Expression
}

func (f *fakeIndex) Search(_ context.Context, name string, _ []float32, k int, expr filter.Expression) ([]domain.Hit, error) {
	f.gotName, f.gotK, f.gotExpr = name, k, expr
	if f.err != nil {
		return nil, f.err
	}
	out := append([]domain.Hit(nil), f.hits...)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedOne(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.vec == nil {
		return []float32{1, 0, 0}, nil
	}
	return f.vec, nil
}

func hit(id string, score float64, text, source string) domain.Hit {
	return domain.Hit{ID: id, Score: score, Payload: domain.Payload{Text: text, Source: source, ChunkID: 0}}
}
