package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/santoshnarayanan/sda/internal/db"
	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/domain/search/filter"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements usecase/collection.Searcher.
type Repo struct {
	store store
	keys  db.Keys
}

// New creates a search repository.
func New(s store, keys db.Keys) *Repo {
	return &Repo{store: s, keys: keys}
}

// Search performs a KNN search on a collection with tag pre-filtering.
// Hits come back best first with the store's cosine similarity as score.
func (r *Repo) Search(
	ctx context.Context, col domain.Collection,
	vector []float32, k int, filters filter.Expression,
) ([]domain.Hit, error) {
	q := &db.KNNQuery{
		IndexName:    r.keys.Index(col.Name),
		Filters:      filters,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields(col),
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, domain.ErrCollectionNotFound
		}
		if errors.Is(err, db.ErrUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
		}
		return nil, fmt.Errorf("search knn %s: %w", col.Name, err)
	}

	return r.parseKNNResults(sr, col.Name), nil
}

// returnFields lists the payload fields loaded for every hit; the vector blob is never returned.
func returnFields(col domain.Collection) []string {
	fields := []string{domain.PayloadText, domain.PayloadSource, domain.PayloadFileExt, domain.PayloadChunkID}
	for _, f := range col.FilterFields {
		if !domain.IsReserved(f) {
			fields = append(fields, f)
		}
	}
	return fields
}

// parseKNNResults converts db.SearchResult into hits.
func (r *Repo) parseKNNResults(sr *db.SearchResult, collection string) []domain.Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	hits := make([]domain.Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		hits = append(hits, domain.Hit{
			ID:      r.keys.PointID(collection, entry.Key),
			Score:   entry.Score,
			Payload: domain.PayloadFromFields(entry.Fields),
		})
	}
	return hits
}
