package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/domain/search/filter"
	"github.com/santoshnarayanan/sda/internal/domain/search/request"
	"github.com/santoshnarayanan/sda/internal/repository/chromem"
	"github.com/santoshnarayanan/sda/internal/usecase/collection"
)

func query(t *testing.T, text string, topK int, rerank bool, filters map[string]string) request.Query {
	t.Helper()
	expr, err := filter.FromMap(filters)
	require.NoError(t, err)
	q, err := request.New(text, topK, rerank, expr, "")
	require.NoError(t, err)
	return q
}

func TestRetrieve_DenseOnly(t *testing.T) {
	idx := &fakeIndex{hits: []domain.Hit{
		hit("b", 0.5, "second", "b.md"),
		hit("a", 0.9, "first", "a.md"),
		hit("c", 0.1, "third", "c.md"),
	}}
	svc := New(idx, &fakeEmbedder{}, 3, nil)

	got, err := svc.Retrieve(context.Background(), "docs", query(t, "anything", 2, false, nil))
	require.NoError(t, err)

	assert.Equal(t, 2, idx.gotK)
	assert.Equal(t, "docs", idx.gotName)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, 0.9, got[0].CombinedScore)
	assert.Equal(t, got[0].DenseScore, got[0].CombinedScore)
	assert.Zero(t, got[0].LexicalScore)
}

func TestRetrieve_CandidatePool(t *testing.T) {
	idx := &fakeIndex{}
	ctx := context.Background()

	_, err := New(idx, &fakeEmbedder{}, 0, nil).Retrieve(ctx, "docs", query(t, "q", 5, true, nil))
	require.NoError(t, err)
	assert.Equal(t, 15, idx.gotK)

	_, err = New(idx, &fakeEmbedder{}, 10, nil).Retrieve(ctx, "docs", query(t, "q", 20, true, nil))
	require.NoError(t, err)
	assert.Equal(t, MaxCandidates, idx.gotK)
}

func TestRetrieve_LexicalAndFuzzyBreakDenseTie(t *testing.T) {
	idx := &fakeIndex{hits: []domain.Hit{
		hit("1", 0.8, "how to configure logging levels", "a.md"),
		hit("2", 0.8, "database migrations run on startup", "b.md"),
		hit("3", 0.8, "the cache expires after one hour", "c.md"),
		hit("4", 0.8, "deploy with the helm chart", "d.md"),
		hit("5", 0.8, "the server listens on port 8080 by default", "e.md"),
	}}
	svc := New(idx, &fakeEmbedder{}, 3, nil)

	got, err := svc.Retrieve(context.Background(), "docs", query(t, "port number", 3, true, nil))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "5", got[0].ID)
	assert.Positive(t, got[0].LexicalScore)
	assert.GreaterOrEqual(t, got[0].CombinedScore, WeightLexical)
}

func TestRetrieve_RerankCombinesNormalizedSignals(t *testing.T) {
	idx := &fakeIndex{hits: []domain.Hit{
		hit("a", 0.9, "alpha", "a"),
		hit("b", 0.7, "beta", "b"),
		hit("c", 0.5, "gamma", "c"),
	}}
	svc := New(idx, &fakeEmbedder{}, 3, nil).WithScorers(nil, constScorer{3, 1, 2}, constScorer{0, 0, 0})

	got, err := svc.Retrieve(context.Background(), "docs", query(t, "q", 3, true, nil))
	require.NoError(t, err)

	// a: 0.55*1 + 0.35*1, b: 0.55*0.5 + 0, c: 0 + 0.35*0.5
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.InDelta(t, 0.9, got[0].CombinedScore, 1e-12)
	assert.InDelta(t, 0.275, got[1].CombinedScore, 1e-12)
	assert.InDelta(t, 0.175, got[2].CombinedScore, 1e-12)
	assert.Equal(t, 0.9, got[0].DenseScore)
	assert.Equal(t, 3.0, got[0].LexicalScore)
}

func TestRetrieve_TiesKeepDenseOrder(t *testing.T) {
	idx := &fakeIndex{hits: []domain.Hit{
		hit("x", 0.6, "same", "x"),
		hit("y", 0.6, "same", "y"),
		hit("z", 0.6, "same", "z"),
	}}
	svc := New(idx, &fakeEmbedder{}, 3, nil)

	got, err := svc.Retrieve(context.Background(), "docs", query(t, "same", 3, true, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, []string{got[0].ID, got[1].ID, got[2].ID})
	for _, c := range got {
		assert.Zero(t, c.CombinedScore)
	}
}

func TestRetrieve_Empty(t *testing.T) {
	svc := New(&fakeIndex{}, &fakeEmbedder{}, 3, nil)
	for _, rerank := range []bool{false, true} {
		got, err := svc.Retrieve(context.Background(), "docs", query(t, "q", 4, rerank, nil))
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestRetrieve_MissingPayload(t *testing.T) {
	idx := &fakeIndex{hits: []domain.Hit{{ID: "p", Score: 0.4}}}
	got, err := New(idx, &fakeEmbedder{}, 3, nil).Retrieve(context.Background(), "docs", query(t, "q", 1, true, nil))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.UnknownSource, got[0].Source)
	assert.Equal(t, domain.UnknownChunkID, got[0].ChunkID)
}

func TestRetrieve_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := New(&fakeIndex{}, &fakeEmbedder{}, 3, nil).Retrieve(ctx, "docs", request.Query{})
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)

	embedErr := errors.New("boom")
	_, err = New(&fakeIndex{}, &fakeEmbedder{err: embedErr}, 3, nil).Retrieve(ctx, "docs", query(t, "q", 1, false, nil))
	assert.ErrorIs(t, err, embedErr)

	_, err = New(&fakeIndex{err: domain.ErrCollectionNotFound}, &fakeEmbedder{}, 3, nil).
		Retrieve(ctx, "missing", query(t, "q", 1, false, nil))
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestRetrieve_FilterRestrictsCandidates(t *testing.T) {
	ctx := context.Background()
	repo := chromem.NewInMemory()
	index := collection.New(collection.Backend{Collections: repo, Points: repo, Search: repo})
	_, err := index.EnsureCollection(ctx, "code", 3, false)
	require.NoError(t, err)

	points := []domain.Point{
		{ID: "1", Vector: []float32{1, 0, 0}, Payload: domain.Payload{Text: "def a(): pass", Source: "a.py", FileExt: ".py"}},
		{ID: "2", Vector: []float32{1, 0.1, 0}, Payload: domain.Payload{Text: "def b(): pass", Source: "b.py", FileExt: ".py"}},
		{ID: "3", Vector: []float32{0.9, 0.2, 0}, Payload: domain.Payload{Text: "def a2(): pass", Source: "a.py", ChunkID: 1, FileExt: ".py"}},
		{ID: "4", Vector: []float32{0, 1, 0}, Payload: domain.Payload{Text: "unrelated", Source: "a.pyc", FileExt: ".pyc"}},
	}
	require.NoError(t, index.Upsert(ctx, "code", points))

	svc := New(index, &fakeEmbedder{vec: []float32{1, 0, 0}}, 3, nil)
	got, err := svc.Retrieve(ctx, "code", query(t, "def a", 5, true, map[string]string{"source": "a.py"}))
	require.NoError(t, err)

	require.Len(t, got, 2)
	for _, c := range got {
		assert.Equal(t, "a.py", c.Source)
	}
}

type constScorer []float64

func (c constScorer) Score(string, []domain.Hit) []float64 { return append([]float64(nil), c...) }
