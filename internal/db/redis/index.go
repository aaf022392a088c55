package redis

import (
	"context"
	"strconv"

	"github.com/santoshnarayanan/sda/internal/db"
)

// CreateIndex creates the FT index of a collection's points.
func (s *Store) CreateIndex(ctx context.Context, idx *db.PointIndex) error {
	if err := idx.Validate(); err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(createArgs(idx)...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return wrapErr(db.OpCreateIndex, err)
	}
	return nil
}

// DropIndex removes an FT index by name. With deleteDocs the indexed hashes are deleted as well.
func (s *Store) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	args := []string{name}
	if deleteDocs {
		args = append(args, "DD")
	}
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isUnknownIndex(err) {
			return db.ErrIndexNotFound
		}
		return wrapErr(db.OpDropIndex, err)
	}
	return nil
}

// isUnknownIndex matches the missing-index replies of Redis ("Unknown index name") and Valkey ("no such index").
func isUnknownIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index")
}

// createArgs renders FT.CREATE arguments for a validated index:
//
//	{name} ON HASH PREFIX 1 {prefix} SCHEMA
//	  {tag} TAG SEPARATOR | CASESENSITIVE ...
//	  {numeric} NUMERIC ...
//	  {vector} AS {alias} VECTOR HNSW {n} TYPE FLOAT32 DIM {dim} DISTANCE_METRIC COSINE [M m] [EF_CONSTRUCTION ef]
func createArgs(idx *db.PointIndex) []string {
	args := []string{idx.Name, "ON", "HASH", "PREFIX", "1", idx.Prefix, "SCHEMA"}
	for _, t := range idx.Tags {
		args = append(args, t, "TAG", "SEPARATOR", db.TagSeparator, "CASESENSITIVE")
	}
	for _, n := range idx.Numerics {
		args = append(args, n, "NUMERIC")
	}

	v := idx.Vector
	args = append(args, v.Name)
	if v.Alias != "" {
		args = append(args, "AS", v.Alias)
	}
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(v.Dim),
		"DISTANCE_METRIC", "COSINE",
	}
	if v.M > 0 {
		attrs = append(attrs, "M", strconv.Itoa(v.M))
	}
	if v.EFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(v.EFConstruct))
	}
	args = append(args, "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
	return append(args, attrs...)
}
