package chunker

import (
	"bytes"
	"sort"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var mdParser = goldmark.New().Parser()

// SplitMarkdown splits like Split but prefers cutting right before heading lines.
func (s *Splitter) SplitMarkdown(src string) []string {
	return s.split(src, headingOffsets([]byte(src)))
}

// headingOffsets returns the rune offsets of every heading line start, ascending.
func headingOffsets(src []byte) []int {
	doc := mdParser.Parse(text.NewReader(src))

	var byteOffsets []int
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if lines := h.Lines(); lines.Len() > 0 {
			seg := lines.At(0)
			// back up over the "#" marker to the start of the line
			byteOffsets = append(byteOffsets, bytes.LastIndexByte(src[:seg.Start], '\n')+1)
		}
		return ast.WalkSkipChildren, nil
	})

	sort.Ints(byteOffsets)
	offsets := make([]int, 0, len(byteOffsets))
	for _, b := range byteOffsets {
		if b == 0 {
			continue
		}
		offsets = append(offsets, utf8.RuneCount(src[:b]))
	}
	return offsets
}
