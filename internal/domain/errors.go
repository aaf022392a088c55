package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCollectionNotFound signals that a named collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionExists signals that a concurrent creator already created the collection.
	ErrCollectionExists = errors.New("collection already exists")
	// ErrInvalidCollectionName signals a collection name the index cannot hold.
	ErrInvalidCollectionName = errors.New("invalid collection name")
	// ErrDimensionMismatch signals a vector width that differs from the collection or embedder dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidQuery signals a malformed query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidFilter signals a filter on a field the index cannot match on.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidDocument signals a malformed ingestion document.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrIndexUnavailable signals that the vector index could not be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrGenerationUnavailable signals that no generation backend is configured.
	ErrGenerationUnavailable = errors.New("generation backend not configured")
)

// DimensionMismatchError carries both widths of a failed dimension check.
type DimensionMismatchError struct {
	Collection string
	Expected   int
	Got        int
}

func (e *DimensionMismatchError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("%s: expected %d, got %d", ErrDimensionMismatch.Error(), e.Expected, e.Got)
	}
	return fmt.Sprintf("%s: collection %s has %d, got %d",
		ErrDimensionMismatch.Error(), e.Collection, e.Expected, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(collection string, expected, got int) error {
	return &DimensionMismatchError{Collection: collection, Expected: expected, Got: got}
}
