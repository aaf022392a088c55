package collection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/domain/search/filter"
)

// --- Mocks ---

type mockRepo struct {
	mu        sync.Mutex
	cols      map[string]domain.Collection
	gets      int
	createErr error
	deleteErr error
	// onCreate runs before the collection is stored; used to simulate a concurrent creator.
	onCreate func(col domain.Collection)
	// hiddenGets makes the next Gets miss, as while a winner's metadata is still being written.
	hiddenGets int
}

func newMockRepo() *mockRepo {
	return &mockRepo{cols: make(map[string]domain.Collection)}
}

func (m *mockRepo) Create(_ context.Context, col domain.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.onCreate != nil {
		m.onCreate(col)
	}
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.cols[col.Name]; ok {
		return domain.ErrCollectionExists
	}
	col.FilterFields = []string{"source", "owner"}
	m.cols[col.Name] = col
	return nil
}

func (m *mockRepo) Get(_ context.Context, name string) (domain.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.hiddenGets > 0 {
		m.hiddenGets--
		return domain.Collection{}, domain.ErrCollectionNotFound
	}
	col, ok := m.cols[name]
	if !ok {
		return domain.Collection{}, domain.ErrCollectionNotFound
	}
	return col, nil
}

func (m *mockRepo) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.cols[name]; !ok {
		return domain.ErrCollectionNotFound
	}
	delete(m.cols, name)
	return nil
}

type mockPoints struct {
	upserted []domain.Point
	count    int
	err      error
}

func (m *mockPoints) Upsert(_ context.Context, _ domain.Collection, points []domain.Point) error {
	if m.err != nil {
		return m.err
	}
	m.upserted = append(m.upserted, points...)
	return nil
}

func (m *mockPoints) Count(_ context.Context, _ string) (int, error) { return m.count, m.err }

type mockSearcher struct {
	hits []domain.Hit
	err  error
	k    int
}

func (m *mockSearcher) Search(_ context.Context, _ domain.Collection, _ []float32, k int, _ filter.Expression) ([]domain.Hit, error) {
	m.k = k
	return m.hits, m.err
}

func newTestService() (*Service, *mockRepo, *mockPoints, *mockSearcher) {
	repo, points, searcher := newMockRepo(), &mockPoints{}, &mockSearcher{}
	return New(Backend{Collections: repo, Points: points, Search: searcher}), repo, points, searcher
}

// --- EnsureCollection ---

func TestEnsureCollection_CreatesOnFirstUse(t *testing.T) {
	svc, repo, _, _ := newTestService()

	col, err := svc.EnsureCollection(context.Background(), "docs", 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if col.VectorSize != 3 || col.Distance != domain.DistanceCosine {
		t.Errorf("unexpected collection: %+v", col)
	}
	if _, ok := repo.cols["docs"]; !ok {
		t.Error("collection not stored")
	}
}

func TestEnsureCollection_Idempotent(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.EnsureCollection(ctx, "docs", 3, false); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if len(repo.cols) != 1 {
		t.Errorf("expected one collection, got %d", len(repo.cols))
	}
}

func TestEnsureCollection_DimensionMismatch(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.cols["docs"] = domain.Collection{Name: "docs", VectorSize: 384}

	_, err := svc.EnsureCollection(context.Background(), "docs", 1536, false)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	var dm *domain.DimensionMismatchError
	if !errors.As(err, &dm) || dm.Expected != 384 || dm.Got != 1536 {
		t.Errorf("unexpected mismatch detail: %v", err)
	}
	if repo.cols["docs"].VectorSize != 384 {
		t.Error("existing collection must not be altered")
	}
}

func TestEnsureCollection_Recreate(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.cols["docs"] = domain.Collection{Name: "docs", VectorSize: 384}

	col, err := svc.EnsureCollection(context.Background(), "docs", 8, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if col.VectorSize != 8 {
		t.Errorf("expected recreated width 8, got %d", col.VectorSize)
	}
}

func TestEnsureCollection_RecreateMissing(t *testing.T) {
	svc, _, _, _ := newTestService()
	if _, err := svc.EnsureCollection(context.Background(), "docs", 8, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureCollection_ConcurrentCreator(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.onCreate = func(col domain.Collection) {
		repo.cols[col.Name] = col
	}

	col, err := svc.EnsureCollection(context.Background(), "docs", 3, false)
	if err != nil {
		t.Fatalf("benign race must be tolerated, got %v", err)
	}
	if col.VectorSize != 3 {
		t.Errorf("unexpected collection: %+v", col)
	}
}

func TestEnsureCollection_ConcurrentCreatorOtherWidth(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.onCreate = func(col domain.Collection) {
		repo.cols[col.Name] = domain.Collection{Name: col.Name, VectorSize: 1024}
	}

	_, err := svc.EnsureCollection(context.Background(), "docs", 768, false)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if repo.cols["docs"].VectorSize != 1024 {
		t.Error("the winner's collection must not be altered")
	}
}

func TestEnsureCollection_WaitsForWinnerMetadata(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.onCreate = func(col domain.Collection) {
		repo.cols[col.Name] = col
		// the next two reads land before the winner's metadata is written
		repo.hiddenGets = 2
	}

	col, err := svc.EnsureCollection(context.Background(), "docs", 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if col.VectorSize != 3 {
		t.Errorf("unexpected collection: %+v", col)
	}
}

func TestEnsureCollection_InvalidInput(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.EnsureCollection(ctx, "bad name", 3, false); !errors.Is(err, domain.ErrInvalidCollectionName) {
		t.Errorf("expected ErrInvalidCollectionName, got %v", err)
	}
	if _, err := svc.EnsureCollection(ctx, "docs", 0, false); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEnsureCollection_CreateError(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.createErr = domain.ErrIndexUnavailable

	_, err := svc.EnsureCollection(context.Background(), "docs", 3, false)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

// --- Describe cache ---

func TestDescribe_Cached(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.cols["docs"] = domain.Collection{Name: "docs", VectorSize: 3}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Describe(ctx, "docs"); err != nil {
			t.Fatal(err)
		}
	}
	if repo.gets != 1 {
		t.Errorf("expected 1 backend read, got %d", repo.gets)
	}

	if err := svc.Drop(ctx, "docs"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Describe(ctx, "docs"); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("expected ErrCollectionNotFound after drop, got %v", err)
	}
}

// --- Upsert ---

func TestUpsert_DimensionCheckedBeforeWrite(t *testing.T) {
	svc, repo, points, _ := newTestService()
	repo.cols["docs"] = domain.Collection{Name: "docs", VectorSize: 2}

	err := svc.Upsert(context.Background(), "docs", []domain.Point{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{1, 0, 0}},
	})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if len(points.upserted) != 0 {
		t.Errorf("nothing may be written, got %d points", len(points.upserted))
	}
}

func TestUpsert_MissingCollection(t *testing.T) {
	svc, _, _, _ := newTestService()
	err := svc.Upsert(context.Background(), "docs", []domain.Point{{ID: "a", Vector: []float32{1}}})
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestUpsert_Success(t *testing.T) {
	svc, repo, points, _ := newTestService()
	repo.cols["docs"] = domain.Collection{Name: "docs", VectorSize: 2}

	err := svc.Upsert(context.Background(), "docs", []domain.Point{{ID: "a", Vector: []float32{1, 0}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points.upserted) != 1 {
		t.Errorf("expected 1 point written, got %d", len(points.upserted))
	}
}

// --- Search ---

func TestSearch_RejectsUnfilterableField(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.cols["docs"] = domain.Collection{Name: "docs", VectorSize: 2, FilterFields: []string{"source"}}

	expr, err := filter.FromMap(map[string]string{"owner": "u1"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.Search(context.Background(), "docs", []float32{1, 0}, 3, expr)
	if !errors.Is(err, domain.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestSearch_Success(t *testing.T) {
	svc, repo, _, searcher := newTestService()
	repo.cols["docs"] = domain.Collection{Name: "docs", VectorSize: 2}
	searcher.hits = []domain.Hit{{ID: "a", Score: 0.9}}

	hits, err := svc.Search(context.Background(), "docs", []float32{1, 0}, 5, filter.Expression{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || searcher.k != 5 {
		t.Errorf("unexpected hits %v k=%d", hits, searcher.k)
	}
}

func TestSearch_Errors(t *testing.T) {
	svc, repo, _, searcher := newTestService()
	ctx := context.Background()

	if _, err := svc.Search(ctx, "docs", []float32{1, 0}, 3, filter.Expression{}); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("expected ErrCollectionNotFound, got %v", err)
	}

	repo.cols["docs"] = domain.Collection{Name: "docs", VectorSize: 2}
	if _, err := svc.Search(ctx, "docs", []float32{1}, 3, filter.Expression{}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := svc.Search(ctx, "docs", []float32{1, 0}, 0, filter.Expression{}); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}

	searcher.err = domain.ErrCollectionNotFound
	if _, err := svc.Search(ctx, "docs", []float32{1, 0}, 3, filter.Expression{}); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("expected ErrCollectionNotFound, got %v", err)
	}
}
