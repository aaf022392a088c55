package retrieval

import (
	"math"
	"strings"
	"unicode/utf8"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/santoshnarayanan/sda/internal/domain"
)

// DenseScorer returns the similarity the index already computed.
type DenseScorer struct{}

// Score implements Scorer.
func (DenseScorer) Score(_ string, candidates []domain.Hit) []float64 {
	out := make([]float64, len(candidates))
	for i, c := range candidates {
		out[i] = c.Score
	}
	return out
}

// BM25 defaults.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// BM25Scorer ranks candidates with Okapi BM25, treating the candidate set as the corpus.
// Tokens are lower-cased whitespace-separated words.
type BM25Scorer struct {
	K1 float64
	B  float64
}

// NewBM25Scorer creates a scorer with k1 = 1.5 and b = 0.75.
func NewBM25Scorer() BM25Scorer {
	return BM25Scorer{K1: DefaultK1, B: DefaultB}
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// Score implements Scorer.
func (s BM25Scorer) Score(query string, candidates []domain.Hit) []float64 {
	out := make([]float64, len(candidates))
	terms := tokenize(query)
	if len(candidates) == 0 || len(terms) == 0 {
		return out
	}

	tfs := make([]map[string]int, len(candidates))
	lengths := make([]int, len(candidates))
	df := make(map[string]int)
	total := 0
	for i, c := range candidates {
		tf := make(map[string]int)
		tokens := tokenize(c.Payload.Text)
		for _, t := range tokens {
			tf[t]++
		}
		for t := range tf {
			df[t]++
		}
		tfs[i] = tf
		lengths[i] = len(tokens)
		total += len(tokens)
	}
	if total == 0 {
		return out
	}

	n := float64(len(candidates))
	avgdl := float64(total) / n
	idf := make(map[string]float64, len(terms))
	for _, t := range terms {
		if _, ok := idf[t]; ok {
			continue
		}
		nt := float64(df[t])
		idf[t] = math.Log(1 + (n-nt+0.5)/(nt+0.5))
	}

	for i := range candidates {
		norm := s.K1 * (1 - s.B + s.B*float64(lengths[i])/avgdl)
		var score float64
		for _, t := range terms {
			tf := float64(tfs[i][t])
			if tf == 0 {
				continue
			}
			score += idf[t] * tf * (s.K1 + 1) / (tf + norm)
		}
		out[i] = score
	}
	return out
}

// Fuzzy inputs are cut to these many runes; partial ratio is quadratic in its inputs.
const (
	maxFuzzyQueryRunes = 128
	maxFuzzyTextRunes  = 1024
)

// FuzzyScorer rates how well the query appears inside each candidate, tolerating typos.
type FuzzyScorer struct{}

// Score implements Scorer.
func (FuzzyScorer) Score(query string, candidates []domain.Hit) []float64 {
	q := truncateRunes(query, maxFuzzyQueryRunes)
	out := make([]float64, len(candidates))
	for i, c := range candidates {
		out[i] = PartialRatio(q, truncateRunes(c.Payload.Text, maxFuzzyTextRunes))
	}
	return out
}

// PartialRatio is the case-insensitive fuzzywuzzy partial ratio scaled to [0,1]: the best
// similarity between the shorter string and an equally long window of the longer one.
// An empty side scores 0.
func PartialRatio(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == "" || b == "" {
		return 0
	}
	return float64(fuzzy.PartialRatio(a, b)) / 100
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
