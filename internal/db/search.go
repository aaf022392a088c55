package db

import "github.com/santoshnarayanan/sda/internal/domain/search/filter"

// KNNQuery asks an index for the K nearest points to Vector among those passing Filters.
// Only ReturnFields are loaded for each hit.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult lists hits by descending similarity. Total counts all matches, not only those returned.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is one hit; Score is a cosine similarity, higher is closer.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
