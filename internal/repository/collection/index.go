package collection

import (
	"fmt"

	"github.com/santoshnarayanan/sda/internal/db"
	"github.com/santoshnarayanan/sda/internal/domain"
)

// vectorAlias is the name KNN queries address the vector by.
const vectorAlias = "vector"

// buildIndex describes the FT index of a collection: a TAG per filterable payload field,
// NUMERIC chunk_id and an HNSW cosine vector.
func buildIndex(keys db.Keys, col domain.Collection, hnsw HNSWConfig) (*db.PointIndex, error) {
	idx := &db.PointIndex{
		Name:     keys.Index(col.Name),
		Prefix:   keys.PointPrefix(col.Name),
		Tags:     col.FilterFields,
		Numerics: []string{domain.PayloadChunkID},
		Vector: db.VectorField{
			Name:        vectorField,
			Alias:       vectorAlias,
			Dim:         col.VectorSize,
			M:           hnsw.M,
			EFConstruct: hnsw.EFConstruct,
		},
	}
	if err := idx.Validate(); err != nil {
		return nil, fmt.Errorf("index schema: %w", err)
	}
	return idx, nil
}

// filterFields returns the indexed tag fields: source and file_ext first, then the
// configured extras, without duplicates or fields that cannot be tags.
func filterFields(extra []string) []string {
	out := []string{domain.PayloadSource, domain.PayloadFileExt}
	seen := map[string]bool{domain.PayloadSource: true, domain.PayloadFileExt: true}
	for _, f := range extra {
		if f == "" || seen[f] || f == domain.PayloadText || f == domain.PayloadChunkID || f == vectorAlias || !db.IsValidIdentifier(f) {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
