package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/santoshnarayanan/sda/internal/db"
	"github.com/santoshnarayanan/sda/internal/domain/search/filter"
)

// knnRecorder keeps the last query it saw and answers with a canned result.
type knnRecorder struct {
	last   *db.KNNQuery
	result *db.SearchResult
	err    error
}

func (r *knnRecorder) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	r.last = q
	return r.result, r.err
}

func newTestRepo(t *testing.T) (*Repo, *knnRecorder) {
	t.Helper()
	rec := &knnRecorder{}
	return New(rec, db.Keys{Prefix: "sda:"}), rec
}

func unitVector() []float32 { return []float32{0.5, 0.5, 0.5, 0.5} }

func ownerIs(t *testing.T, owner string) filter.Expression {
	t.Helper()
	c, err := filter.NewMatch("owner", owner)
	require.NoError(t, err)
	expr, err := filter.NewExpression(c)
	require.NoError(t, err)
	return expr
}
