package db

import (
	"errors"
	"fmt"
	"strings"
)

// TagSeparator splits multi-valued TAG fields. Point payload values are single-valued,
// so it only has to be a character that paths and ids never contain.
const TagSeparator = "|"

// VectorField is the HNSW vector of a point index. The metric is always cosine.
type VectorField struct {
	Name        string // hash field holding the FLOAT32 blob
	Alias       string // name used by KNN queries, e.g. @vector
	Dim         int
	M           int // max edges per node; 0 leaves the server default
	EFConstruct int // build-time candidate list; 0 leaves the server default
}

// PointIndex is the FT index over the point hashes of one collection:
// case-sensitive TAG fields for equality filters, NUMERIC fields and one vector.
type PointIndex struct {
	Name     string
	Prefix   string
	Tags     []string
	Numerics []string
	Vector   VectorField
}

// Validate checks identifiers, field uniqueness and the vector width.
func (p *PointIndex) Validate() error {
	if !IsValidIdentifier(p.Name) {
		return fmt.Errorf("invalid index name %q", p.Name)
	}
	if p.Prefix == "" {
		return errors.New("index prefix is required")
	}
	if p.Vector.Name == "" {
		return errors.New("vector field name is required")
	}
	if p.Vector.Dim <= 0 {
		return fmt.Errorf("vector dim must be positive, got %d", p.Vector.Dim)
	}

	seen := map[string]bool{p.Vector.Name: true}
	if p.Vector.Alias != "" {
		seen[p.Vector.Alias] = true
	}
	for _, f := range append(append([]string{}, p.Tags...), p.Numerics...) {
		if !IsValidIdentifier(f) {
			return fmt.Errorf("invalid field name %q", f)
		}
		if seen[f] {
			return fmt.Errorf("duplicate field %q", f)
		}
		seen[f] = true
	}
	return nil
}

// String renders the index as a compact FT.CREATE line for logs.
func (p *PointIndex) String() string {
	parts := []string{"FT.CREATE", p.Name, "PREFIX", p.Prefix, "SCHEMA"}
	for _, t := range p.Tags {
		parts = append(parts, t, "TAG")
	}
	for _, n := range p.Numerics {
		parts = append(parts, n, "NUMERIC")
	}
	parts = append(parts, p.Vector.Name)
	if p.Vector.Alias != "" {
		parts = append(parts, "AS", p.Vector.Alias)
	}
	parts = append(parts, "VECTOR", "HNSW", fmt.Sprintf("DIM=%d", p.Vector.Dim))
	return strings.Join(parts, " ")
}

// IsValidIdentifier reports whether s is a non-empty run of [a-zA-Z0-9_:-].
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == ':' || r == '-':
		default:
			return false
		}
	}
	return true
}
