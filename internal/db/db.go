// Package db defines the storage contract of the Redis-family index backend.
// Repositories depend on the narrow interfaces and the redis package implements all of them.
package db

import (
	"context"
	"time"
)

// Store is everything the redis package offers to repositories and the health check.
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one hash of a batched write.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore stores collection metadata and points as hashes.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HSetAtomic writes all items or none.
	HSetAtomic(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// KVStore backs the embedding cache. Get returns ErrKeyNotFound for a missing key.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type IndexManager interface {
	// CreateIndex returns ErrIndexExists when the name is taken.
	CreateIndex(ctx context.Context, idx *PointIndex) error
	// DropIndex returns ErrIndexNotFound for an unknown name. deleteDocs also removes the indexed hashes.
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
}

type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	// SearchCount counts the documents matching query without loading them.
	SearchCount(ctx context.Context, index, query string) (int, error)
}
