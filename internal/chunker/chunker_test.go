package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lorem = "lorem ipsum dolor sit amet consectetur adipiscing elit sed do eiusmod tempor incididunt ut labore "

// repeatTo repeats unit until the result holds exactly n characters.
func repeatTo(unit string, n int) string {
	u := []rune(unit)
	out := make([]rune, 0, n+len(u))
	for len(out) < n {
		out = append(out, u...)
	}
	return string(out[:n])
}

func runeLen(s string) int { return len([]rune(s)) }

func lastRunes(s string, n int) string {
	r := []rune(s)
	return string(r[len(r)-n:])
}

func TestNewSplitter_Validation(t *testing.T) {
	tests := []struct {
		name string
		p    Profile
	}{
		{"zero max_len", Profile{MaxLen: 0, Overlap: 0}},
		{"negative max_len", Profile{MaxLen: -1, Overlap: 0}},
		{"negative overlap", Profile{MaxLen: 10, Overlap: -1}},
		{"overlap equals max_len", Profile{MaxLen: 10, Overlap: 10}},
		{"overlap above max_len", Profile{MaxLen: 10, Overlap: 11}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSplitter(tt.p)
			assert.Error(t, err)
		})
	}

	s, err := NewSplitter(DocumentProfile)
	require.NoError(t, err)
	assert.Equal(t, DocumentProfile, s.Profile())
}

func TestSplit_BlankText(t *testing.T) {
	s, err := NewSplitter(DocumentProfile)
	require.NoError(t, err)

	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split(" \n\t\n "))
}

func TestSplit_ShortTextUnchanged(t *testing.T) {
	s, err := NewSplitter(DocumentProfile)
	require.NoError(t, err)

	text := repeatTo(lorem, 500)
	chunks := s.Split(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplit_ExactlyMaxLen(t *testing.T) {
	s, err := NewSplitter(Profile{MaxLen: 50, Overlap: 10})
	require.NoError(t, err)

	text := repeatTo(lorem, 50)
	assert.Equal(t, []string{text}, s.Split(text))
}

func TestSplit_TwoThousandChars(t *testing.T) {
	s, err := NewSplitter(DocumentProfile)
	require.NoError(t, err)

	text := repeatTo(lorem, 2000)
	chunks := s.Split(text)
	require.Len(t, chunks, 3)

	tail := lastRunes(chunks[0], 120)
	idx := strings.Index(chunks[1], tail)
	require.GreaterOrEqual(t, idx, 0, "chunk[1] must contain the last 120 characters of chunk[0]")
	assert.LessOrEqual(t, idx, maxBoundaryShift, "overlap may shift by a few characters only")
}

func TestSplit_Properties(t *testing.T) {
	inputs := map[string]string{
		"words":      repeatTo(lorem, 5000),
		"sentences":  repeatTo("The port is 8080. Restart the service after changes. ", 4100),
		"paragraphs": repeatTo("first line of a paragraph\nsecond line here\n\n", 3700),
		"no spaces":  strings.Repeat("x", 3000),
		"unicode":    repeatTo("привет мир héllo wörld 日本語 ", 2600),
	}
	profiles := []Profile{DocumentProfile, ChatProfile, {MaxLen: 40, Overlap: 10}}

	for name, text := range inputs {
		for _, p := range profiles {
			s, err := NewSplitter(p)
			require.NoError(t, err)

			chunks := s.Split(text)
			require.Greater(t, len(chunks), 1, name)
			for i, c := range chunks {
				assert.NotEmpty(t, strings.TrimSpace(c), "%s: chunk %d is blank", name, i)
				assert.LessOrEqual(t, runeLen(c), p.MaxLen, "%s: chunk %d too long", name, i)
				if i == 0 {
					continue
				}
				tail := lastRunes(chunks[i-1], p.Overlap)
				assert.Contains(t, chunks[i], tail, "%s/%d: chunks %d and %d do not overlap", name, p.MaxLen, i-1, i)
			}
		}
	}
}

func TestSplit_Reconstructs(t *testing.T) {
	s, err := NewSplitter(ChatProfile)
	require.NoError(t, err)

	var src strings.Builder
	for i := 0; src.Len() < 1500; i++ {
		fmt.Fprintf(&src, "line %d alpha beta. gamma %d\n", i, i*7)
		if i%4 == 3 {
			src.WriteString("\n")
		}
	}
	text := src.String()
	chunks := s.Split(text)

	var b strings.Builder
	b.WriteString(chunks[0])
	for i := 1; i < len(chunks); i++ {
		prev := []rune(b.String())
		cur := []rune(chunks[i])
		// find the longest prefix of cur that is a suffix of what was rebuilt so far
		k := min(len(cur), len(prev))
		for ; k > 0; k-- {
			if string(prev[len(prev)-k:]) == string(cur[:k]) {
				break
			}
		}
		b.WriteString(string(cur[k:]))
	}
	assert.Equal(t, text, b.String())
}

func TestSplit_PrefersParagraphs(t *testing.T) {
	s, err := NewSplitter(Profile{MaxLen: 100, Overlap: 10})
	require.NoError(t, err)

	para := repeatTo("word ", 70) + "\n\n"
	chunks := s.Split(para + para + para)
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasSuffix(chunks[0], "\n\n"), "first cut should land after a paragraph break: %q", chunks[0])
}

func TestSplitMarkdown_CutsBeforeHeadings(t *testing.T) {
	s, err := NewSplitter(Profile{MaxLen: 200, Overlap: 20})
	require.NoError(t, err)

	section := func(title string) string {
		return "## " + title + "\n\n" + repeatTo("some body text here. ", 140) + "\n"
	}
	doc := "# Guide\n\n" + section("Install") + section("Configure") + section("Run")

	chunks := s.SplitMarkdown(doc)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0], "\n"), "expected first chunk to stop before a heading: %q", chunks[0])
	assert.Contains(t, chunks[0], "## Install")
	assert.Contains(t, chunks[1], "## Configure")
	for _, c := range chunks {
		assert.LessOrEqual(t, runeLen(c), 200)
	}
}

func TestHeadingOffsets(t *testing.T) {
	src := "intro\n\n# One\n\ntext\n\nTwo\n===\n\nmore\n## Три\n"
	offsets := headingOffsets([]byte(src))
	require.Len(t, offsets, 3)

	r := []rune(src)
	assert.Equal(t, "# One", string(r[offsets[0]:offsets[0]+5]))
	assert.Equal(t, "Two", string(r[offsets[1]:offsets[1]+3]))
	assert.Equal(t, "## Три", string(r[offsets[2]:offsets[2]+6]))
}
