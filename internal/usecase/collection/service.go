package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/domain/search/filter"
)

// Service owns the lifecycle of collections and is the only writer of their existence.
type Service struct {
	repo     Repository
	points   PointWriter
	searcher Searcher

	mu    sync.RWMutex
	cache map[string]domain.Collection
}

// New creates a collection service over a backend.
func New(b Backend) *Service {
	return &Service{
		repo:     b.Collections,
		points:   b.Points,
		searcher: b.Search,
		cache:    make(map[string]domain.Collection),
	}
}

// EnsureCollection makes sure a collection named name exists with vectors of width dim.
// With recreate the collection is dropped first. An existing collection of a different width is
// ErrDimensionMismatch and is never altered.
func (s *Service) EnsureCollection(ctx context.Context, name string, dim int, recreate bool) (domain.Collection, error) {
	if err := domain.ValidateCollectionName(name); err != nil {
		return domain.Collection{}, err
	}
	if dim <= 0 {
		return domain.Collection{}, fmt.Errorf("%w: dimension %d must be positive", domain.ErrDimensionMismatch, dim)
	}

	if recreate {
		if err := s.Drop(ctx, name); err != nil && !errors.Is(err, domain.ErrCollectionNotFound) {
			return domain.Collection{}, fmt.Errorf("recreate collection: %w", err)
		}
	}

	col, err := s.Describe(ctx, name)
	switch {
	case err == nil:
		return checkDim(col, dim)
	case !errors.Is(err, domain.ErrCollectionNotFound):
		return domain.Collection{}, err
	}

	err = s.repo.Create(ctx, domain.Collection{Name: name, VectorSize: dim, Distance: domain.DistanceCosine})
	switch {
	case err == nil:
		col, err = s.Describe(ctx, name)
	case errors.Is(err, domain.ErrCollectionExists):
		// lost the race: judge the winner's collection against our width
		col, err = s.describeSettled(ctx, name)
	default:
		return domain.Collection{}, fmt.Errorf("create collection: %w", err)
	}
	if err != nil {
		return domain.Collection{}, err
	}
	return checkDim(col, dim)
}

const (
	settleAttempts = 5
	settlePause    = 20 * time.Millisecond
)

// describeSettled re-reads a collection another creator is still writing. A backend may report
// the collection as taken shortly before its description becomes readable.
func (s *Service) describeSettled(ctx context.Context, name string) (domain.Collection, error) {
	pause := settlePause
	for attempt := 1; ; attempt++ {
		col, err := s.Describe(ctx, name)
		if err == nil || !errors.Is(err, domain.ErrCollectionNotFound) || attempt == settleAttempts {
			return col, err
		}
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.Collection{}, ctx.Err()
		case <-timer.C:
		}
		pause *= 2
	}
}

// Describe returns a collection, served from the in-process cache once seen.
func (s *Service) Describe(ctx context.Context, name string) (domain.Collection, error) {
	s.mu.RLock()
	col, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	col, err := s.repo.Get(ctx, name)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("get collection %s: %w", name, err)
	}

	s.mu.Lock()
	s.cache[name] = col
	s.mu.Unlock()
	return col, nil
}

// Upsert writes points into an existing collection. Every vector is checked against the collection
// width before anything is written.
func (s *Service) Upsert(ctx context.Context, name string, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	col, err := s.Describe(ctx, name)
	if err != nil {
		return err
	}
	for i := range points {
		if got := len(points[i].Vector); got != col.VectorSize {
			return fmt.Errorf("point %s: %w", points[i].ID, domain.NewDimensionMismatch(name, col.VectorSize, got))
		}
	}
	if err := s.points.Upsert(ctx, col, points); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Search returns the k nearest points to vector, restricted by filters.
func (s *Service) Search(
	ctx context.Context, name string, vector []float32, k int, filters filter.Expression,
) ([]domain.Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", domain.ErrInvalidQuery)
	}
	col, err := s.Describe(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(vector) != col.VectorSize {
		return nil, domain.NewDimensionMismatch(name, col.VectorSize, len(vector))
	}
	for _, c := range filters.Must() {
		if !col.CanFilter(c.Key()) {
			return nil, fmt.Errorf("%w: collection %s cannot filter on %q", domain.ErrInvalidFilter, name, c.Key())
		}
	}

	hits, err := s.searcher.Search(ctx, col, vector, k, filters)
	if err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) {
			s.forget(name)
		}
		return nil, fmt.Errorf("search: %w", err)
	}
	return hits, nil
}

// Count returns the number of points in a collection.
func (s *Service) Count(ctx context.Context, name string) (int, error) {
	n, err := s.points.Count(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Drop removes a collection and every point in it.
func (s *Service) Drop(ctx context.Context, name string) error {
	s.forget(name)
	if err := s.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}
	return nil
}

func (s *Service) forget(name string) {
	s.mu.Lock()
	delete(s.cache, name)
	s.mu.Unlock()
}

func checkDim(col domain.Collection, dim int) (domain.Collection, error) {
	if col.VectorSize != dim {
		return domain.Collection{}, domain.NewDimensionMismatch(col.Name, col.VectorSize, dim)
	}
	return col, nil
}
