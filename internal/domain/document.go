package domain

import (
	"path"
	"strings"
)

// Document is one unit of a corpus as read by an enumerator.
type Document struct {
	Text    string
	Source  string // relative path or logical name
	Doctype string
	Tags    map[string]string
}

// FileExt returns the lower-cased extension of the document source, including the dot.
func (d Document) FileExt() string {
	return strings.ToLower(path.Ext(d.Source))
}

// Chunk is a bounded slice of one document's text.
type Chunk struct {
	Text     string
	Source   string
	Position int // 0-based order within the source
	FileExt  string
}
