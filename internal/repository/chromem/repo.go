// Package chromem keeps collections in an in-process chromem-go database.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/domain/search/filter"
)

// Repo implements the Repository, PointWriter and Searcher contracts of usecase/collection.
// Every payload field is stored as chromem metadata, so any field can be filtered on.
type Repo struct {
	db *chromemgo.DB

	mu   sync.RWMutex
	cols map[string]*entry
}

type entry struct {
	col domain.Collection
	ids map[string]struct{}
}

// New creates a repository over db.
func New(db *chromemgo.DB) *Repo {
	return &Repo{db: db, cols: make(map[string]*entry)}
}

// NewInMemory creates a repository over a fresh in-memory database.
func NewInMemory() *Repo {
	return New(chromemgo.NewDB())
}

// Create adds an empty collection.
func (r *Repo) Create(_ context.Context, col domain.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cols[col.Name]; ok {
		return domain.ErrCollectionExists
	}
	// Vectors are always supplied by the caller, so the collection never embeds on its own.
	if _, err := r.db.CreateCollection(col.Name, map[string]string{"distance": string(domain.DistanceCosine)}, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", col.Name, err)
	}
	col.Distance = domain.DistanceCosine
	col.FilterFields = nil
	r.cols[col.Name] = &entry{col: col, ids: make(map[string]struct{})}
	return nil
}

// Get returns a collection description.
func (r *Repo) Get(_ context.Context, name string) (domain.Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.cols[name]
	if !ok {
		return domain.Collection{}, domain.ErrCollectionNotFound
	}
	return e.col, nil
}

// Delete drops a collection with all its points.
func (r *Repo) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cols[name]; !ok {
		return domain.ErrCollectionNotFound
	}
	if err := r.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	delete(r.cols, name)
	return nil
}

// Upsert adds or replaces points. On failure the ids this call introduced are removed again.
func (r *Repo) Upsert(ctx context.Context, col domain.Collection, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, c, err := r.lookup(col.Name)
	if err != nil {
		return err
	}

	docs := make([]chromemgo.Document, 0, len(points))
	var added []string
	for i := range points {
		p := &points[i]
		if p.ID == "" {
			return fmt.Errorf("%w: point %d has no id", domain.ErrInvalidDocument, i)
		}
		if len(p.Vector) == 0 {
			return fmt.Errorf("%w: point %s has no vector", domain.ErrInvalidDocument, p.ID)
		}
		if _, ok := e.ids[p.ID]; !ok {
			added = append(added, p.ID)
		}
		docs = append(docs, chromemgo.Document{
			ID:        p.ID,
			Metadata:  p.Payload.Fields(),
			Embedding: append([]float32(nil), p.Vector...),
			Content:   p.Payload.Text,
		})
	}

	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		if len(added) > 0 {
			if rbErr := c.Delete(ctx, nil, nil, added...); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
		}
		return fmt.Errorf("add %d documents to %s: %w", len(docs), col.Name, err)
	}
	for _, id := range added {
		e.ids[id] = struct{}{}
	}
	return nil
}

// Ping always succeeds; the index lives in process memory.
func (r *Repo) Ping(context.Context) error { return nil }

// Count returns the number of points in a collection.
func (r *Repo) Count(_ context.Context, name string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, c, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// Search returns the k most similar points. Equality filters become a chromem where clause.
func (r *Repo) Search(
	ctx context.Context, col domain.Collection, vector []float32, k int, filters filter.Expression,
) ([]domain.Hit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, c, err := r.lookup(col.Name)
	if err != nil {
		return nil, err
	}

	n := c.Count()
	if n == 0 {
		return nil, nil
	}
	if k > n {
		k = n
	}

	res, err := c.QueryEmbedding(ctx, vector, k, filters.Map(), nil)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", col.Name, err)
	}

	hits := make([]domain.Hit, 0, len(res))
	for _, doc := range res {
		hits = append(hits, domain.Hit{
			ID:      doc.ID,
			Score:   clamp(float64(doc.Similarity)),
			Payload: domain.PayloadFromFields(doc.Metadata),
		})
	}
	return hits, nil
}

func (r *Repo) lookup(name string) (*entry, *chromemgo.Collection, error) {
	e, ok := r.cols[name]
	if !ok {
		return nil, nil, domain.ErrCollectionNotFound
	}
	c := r.db.GetCollection(name, nil)
	if c == nil {
		return nil, nil, domain.ErrCollectionNotFound
	}
	return e, c, nil
}

func clamp(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
