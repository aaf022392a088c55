package domain

import (
	"fmt"
	"regexp"
)

// Distance is the similarity metric of a collection.
type Distance string

// DistanceCosine is the only metric collections are created with.
const DistanceCosine Distance = "cosine"

// MaxCollectionNameLen bounds collection names.
const MaxCollectionNameLen = 128

var collectionNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Collection describes a named vector index.
type Collection struct {
	Name       string
	VectorSize int
	Distance   Distance
	// FilterFields lists payload fields usable in equality filters. Nil means any field.
	FilterFields []string
}

// CanFilter reports whether the collection accepts an equality filter on field.
func (c Collection) CanFilter(field string) bool {
	if c.FilterFields == nil {
		return true
	}
	for _, f := range c.FilterFields {
		if f == field {
			return true
		}
	}
	return false
}

// ValidateCollectionName checks that name is usable as a collection identifier on every backend.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCollectionName)
	}
	if len(name) > MaxCollectionNameLen {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidCollectionName, MaxCollectionNameLen)
	}
	if !collectionNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidCollectionName, name, collectionNameRe.String())
	}
	return nil
}
