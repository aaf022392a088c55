package point

import (
	"context"
	"testing"

	"github.com/santoshnarayanan/sda/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetAtomicFn  func(ctx context.Context, items []db.HashSetItem) error
	searchCountFn func(ctx context.Context, index, query string) (int, error)
}

func (m *mockStore) HSetAtomic(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetAtomicFn != nil {
		return m.hsetAtomicFn(ctx, items)
	}
	return nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, db.Keys{Prefix: "sda:"}), ms
}
