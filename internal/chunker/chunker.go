// Package chunker splits text into overlapping, bounded-length chunks.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
)

// Profile is a chunk size and overlap pair, both in characters.
type Profile struct {
	MaxLen  int
	Overlap int
}

// Built-in profiles.
var (
	DocumentProfile = Profile{MaxLen: 800, Overlap: 120}
	ChatProfile     = Profile{MaxLen: 400, Overlap: 50}
)

// separators in priority order; a cut lands right after the separator.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune(" "),
}

// maxBoundaryShift bounds how far a chunk start moves back to reach a word boundary.
const maxBoundaryShift = 20

// Splitter is a recursive separator splitter. It is safe for concurrent use.
type Splitter struct {
	maxLen  int
	overlap int
}

// NewSplitter validates the profile and creates a Splitter.
func NewSplitter(p Profile) (*Splitter, error) {
	if p.MaxLen <= 0 {
		return nil, fmt.Errorf("chunker: max_len must be positive, got %d", p.MaxLen)
	}
	if p.Overlap < 0 {
		return nil, fmt.Errorf("chunker: overlap must not be negative, got %d", p.Overlap)
	}
	if p.Overlap >= p.MaxLen {
		return nil, fmt.Errorf("chunker: overlap %d must be less than max_len %d", p.Overlap, p.MaxLen)
	}
	return &Splitter{maxLen: p.MaxLen, overlap: p.Overlap}, nil
}

// Profile returns the splitter's size settings.
func (s *Splitter) Profile() Profile {
	return Profile{MaxLen: s.maxLen, Overlap: s.overlap}
}

// Split cuts text into chunks of at most MaxLen characters. Consecutive chunks share
// at least Overlap characters. Blank text yields no chunks.
func (s *Splitter) Split(text string) []string {
	return s.split(text, nil)
}

// split runs the sliding window. preferred holds rune offsets that beat every separator as cut points.
func (s *Splitter) split(text string, preferred []int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	r := []rune(text)
	if len(r) <= s.maxLen {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(r) {
		if len(r)-start <= s.maxLen {
			chunks = appendChunk(chunks, r[start:])
			break
		}
		end := s.cut(r, start, preferred)
		chunks = appendChunk(chunks, r[start:end])
		start = s.nextStart(r, start, end)
	}
	return chunks
}

// cut picks the end of the chunk that begins at start.
func (s *Splitter) cut(r []rune, start int, preferred []int) int {
	limit := start + s.maxLen
	lo := start + s.minAdvance()

	best := -1
	for _, p := range preferred {
		if p >= lo && p <= limit && p > best {
			best = p
		}
	}
	if best > 0 {
		return best
	}

	for _, sep := range separators {
		for p := limit; p >= lo; p-- {
			if hasSuffixAt(r, p, sep) {
				return p
			}
		}
	}
	return limit
}

// minAdvance is the shortest chunk cut before the final one.
func (s *Splitter) minAdvance() int {
	return max(s.overlap+1, s.maxLen/2)
}

// nextStart steps back overlap characters from end, then to the nearest word start within reach.
// The result is greater than start and at most end-overlap, and the shift is small enough that
// the next chunk still reaches past end.
func (s *Splitter) nextStart(r []rune, start, end int) int {
	next := end - s.overlap
	shift := min(maxBoundaryShift, s.minAdvance()-s.overlap-1)
	for k := 0; k <= shift; k++ {
		p := next - k
		if p <= start {
			break
		}
		if unicode.IsSpace(r[p-1]) && !unicode.IsSpace(r[p]) {
			return p
		}
	}
	return next
}

func hasSuffixAt(r []rune, p int, sep []rune) bool {
	if p < len(sep) {
		return false
	}
	for i, c := range sep {
		if r[p-len(sep)+i] != c {
			return false
		}
	}
	return true
}

func appendChunk(chunks []string, r []rune) []string {
	c := string(r)
	if strings.TrimSpace(c) == "" {
		return chunks
	}
	return append(chunks, c)
}
