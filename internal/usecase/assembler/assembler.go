// Package assembler packs ranked chunks into a bounded context window with source attribution.
package assembler

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/santoshnarayanan/sda/internal/domain"
)

// Defaults.
const (
	DefaultMaxChunks = 4
	SnippetLen       = 220
	Separator        = "\n\n---\n\n"
	ellipsis         = "..."
)

// Source attributes one chunk of the context.
type Source struct {
	Source  string
	ChunkID int
	Score   float64
	Snippet string
}

// Context is the text handed to generation plus its attribution.
type Context struct {
	Text    string
	Sources []Source
}

// Assemble takes the first maxChunks of ranked, in order. maxChunks <= 0 uses DefaultMaxChunks.
func Assemble(ranked []domain.ScoredChunk, maxChunks int) Context {
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	if len(ranked) > maxChunks {
		ranked = ranked[:maxChunks]
	}

	texts := make([]string, len(ranked))
	sources := make([]Source, len(ranked))
	for i, c := range ranked {
		texts[i] = c.Text
		sources[i] = Source{
			Source:  c.Source,
			ChunkID: c.ChunkID,
			Score:   Round(c.CombinedScore, 4),
			Snippet: Snippet(c.Text, SnippetLen),
		}
	}
	return Context{Text: strings.Join(texts, Separator), Sources: sources}
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Snippet returns the first n characters of text, followed by "..." when text was longer.
func Snippet(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	r := []rune(text)
	return string(r[:n]) + ellipsis
}
