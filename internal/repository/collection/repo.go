package collection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/santoshnarayanan/sda/internal/db"
	"github.com/santoshnarayanan/sda/internal/domain"
)

// vectorField is the hash field that holds the FLOAT32 vector blob.
const vectorField = "__vector"

// store is the consumer interface for collections (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, idx *db.PointIndex) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements usecase/collection.Repository over Redis hashes and FT indexes.
type Repo struct {
	store        store
	keys         db.Keys
	hnsw         HNSWConfig
	filterFields []string
	now          func() time.Time
}

// New creates a collection repository. extraFilterFields are indexed as TAG fields
// next to source and file_ext.
func New(s store, keys db.Keys, extraFilterFields []string) *Repo {
	return &Repo{
		store:        s,
		keys:         keys,
		hnsw:         HNSWConfig{M: 16, EFConstruct: 200},
		filterFields: filterFields(extraFilterFields),
		now:          time.Now,
	}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// Create builds the FT index, then writes the metadata hash.
// The index name is the creation lock: a creator that loses the FT.CREATE race gets
// ErrCollectionExists before writing anything, so the winner's metadata is never overwritten.
// A failed metadata write drops the fresh index again.
func (r *Repo) Create(ctx context.Context, col domain.Collection) error {
	name := col.Name
	metaKey := r.keys.Meta(name)

	exists, err := r.store.Exists(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("check exists: %w", mapErr(err))
	}
	if exists {
		return domain.ErrCollectionExists
	}

	col.FilterFields = r.filterFields
	col.Distance = domain.DistanceCosine
	idx, err := buildIndex(r.keys, col, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	if err := r.store.CreateIndex(ctx, idx); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return domain.ErrCollectionExists
		}
		return fmt.Errorf("create index %s: %w", name, mapErr(err))
	}

	if err := r.store.HSet(ctx, metaKey, collectionToHash(col, r.now())); err != nil {
		dropErr := r.store.DropIndex(ctx, idx.Name, false)
		return errors.Join(fmt.Errorf("hset collection %s: %w", name, mapErr(err)), dropErr)
	}

	return nil
}

// Get retrieves a collection by name.
func (r *Repo) Get(ctx context.Context, name string) (domain.Collection, error) {
	m, err := r.store.HGetAll(ctx, r.keys.Meta(name))
	if err != nil {
		return domain.Collection{}, fmt.Errorf("hgetall collection %s: %w", name, mapErr(err))
	}
	if len(m) == 0 {
		return domain.Collection{}, domain.ErrCollectionNotFound
	}

	col, err := collectionFromHash(m)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("parse collection %s: %w", name, err)
	}
	return col, nil
}

// Delete removes a collection: DEL metadata, then FT.DROPINDEX DD which deletes the points too.
// A failed drop restores the metadata.
func (r *Repo) Delete(ctx context.Context, name string) error {
	metaKey := r.keys.Meta(name)

	metaBackup, err := r.store.HGetAll(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("hgetall collection %s: %w", name, mapErr(err))
	}
	if len(metaBackup) == 0 {
		return domain.ErrCollectionNotFound
	}

	if err := r.store.Del(ctx, metaKey); err != nil {
		return fmt.Errorf("del collection %s: %w", name, mapErr(err))
	}

	if err := r.store.DropIndex(ctx, r.keys.Index(name), true); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil
		}
		cleanupErr := r.store.HSet(ctx, metaKey, metaBackup)
		return errors.Join(mapErr(err), cleanupErr)
	}

	return nil
}

func mapErr(err error) error {
	if errors.Is(err, db.ErrUnavailable) {
		return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return err
}
