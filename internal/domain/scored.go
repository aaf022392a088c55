package domain

// ScoredChunk is a ranked retrieval result. It lives for one query only.
type ScoredChunk struct {
	ID            string
	Text          string
	Source        string
	ChunkID       int
	DenseScore    float64
	LexicalScore  float64
	FuzzyScore    float64
	CombinedScore float64
}
