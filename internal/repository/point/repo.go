package point

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/santoshnarayanan/sda/internal/db"
	"github.com/santoshnarayanan/sda/internal/domain"
)

// vectorField is the hash field that holds the FLOAT32 vector blob.
const vectorField = "__vector"

// store is the consumer interface for points (ISP).
type store interface {
	HSetAtomic(ctx context.Context, items []db.HashSetItem) error
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements usecase/collection.PointWriter over Redis hashes.
type Repo struct {
	store store
	keys  db.Keys
}

// New creates a point repository.
func New(s store, keys db.Keys) *Repo {
	return &Repo{store: s, keys: keys}
}

// Upsert writes every point of the batch in one MULTI/EXEC, so a batch is either fully visible or not at all.
// Existing points with the same id are overwritten.
func (r *Repo) Upsert(ctx context.Context, col domain.Collection, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(points))
	for i := range points {
		p := &points[i]
		if p.ID == "" {
			return fmt.Errorf("%w: point %d has no id", domain.ErrInvalidDocument, i)
		}
		items = append(items, db.HashSetItem{
			Key:    r.keys.Point(col.Name, p.ID),
			Fields: buildHashFields(p),
		})
	}

	if err := r.store.HSetAtomic(ctx, items); err != nil {
		return fmt.Errorf("upsert %d points into %s: %w", len(points), col.Name, mapErr(err))
	}
	return nil
}

// Count returns the number of points in a collection.
func (r *Repo) Count(ctx context.Context, name string) (int, error) {
	n, err := r.store.SearchCount(ctx, r.keys.Index(name), "*")
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, domain.ErrCollectionNotFound
		}
		return 0, fmt.Errorf("search count %s: %w", name, mapErr(err))
	}
	return n, nil
}

// buildHashFields converts a point into a flat map for HSET.
func buildHashFields(p *domain.Point) map[string]string {
	m := p.Payload.Fields()
	m[vectorField] = vectorToBytes(p.Vector)
	return m
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func mapErr(err error) error {
	if errors.Is(err, db.ErrUnavailable) {
		return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return err
}
