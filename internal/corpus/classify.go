// Package corpus enumerates ingestion inputs: directory trees, zip archives, document lists and chat logs.
package corpus

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/santoshnarayanan/sda/internal/domain"
)

// Kind is the ingestion class of a file.
type Kind int

const (
	// KindUnsupported files are recorded as skipped.
	KindUnsupported Kind = iota
	// KindText files are read as UTF-8 text.
	KindText
	// KindPDF files have their text layer extracted.
	KindPDF
	// KindImage files are recorded but never embedded.
	KindImage
)

// Skip reasons reported for entries that are not indexed.
const (
	ReasonImage       = "image not embedded"
	ReasonUnsupported = "unsupported file type"
	ReasonBinary      = "binary content"
	ReasonTooLarge    = "file exceeds size limit"
	ReasonEmpty       = "empty content"
	ReasonPDF         = "pdf text extraction failed"
	ReasonRead        = "read failed"
)

// DefaultMaxFileBytes caps the size of a single corpus entry.
const DefaultMaxFileBytes = 5 << 20

var textExts = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true, ".json": true,
	".md": true, ".txt": true, ".sql": true, ".yml": true, ".yaml": true,
	".ini": true, ".cfg": true, ".toml": true, ".go": true,
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true,
}

// Classify returns the ingestion class of name by its lower-cased extension.
func Classify(name string) Kind {
	ext := strings.ToLower(path.Ext(name))
	switch {
	case textExts[ext]:
		return KindText
	case ext == ".pdf":
		return KindPDF
	case imageExts[ext]:
		return KindImage
	}
	return KindUnsupported
}

// Entry is one corpus item. Skip is empty for indexable entries.
type Entry struct {
	Document domain.Document
	Skip     string
}

// Skipped reports whether the entry must not be indexed.
func (e Entry) Skipped() bool { return e.Skip != "" }

func skipped(source, reason string) Entry {
	return Entry{Document: domain.Document{Source: source}, Skip: reason}
}

// ReadFile classifies a file and decodes its content. Unreadable content yields a skipped entry, never an error.
func ReadFile(source string, data []byte) Entry {
	switch Classify(source) {
	case KindImage:
		return skipped(source, ReasonImage)
	case KindUnsupported:
		return skipped(source, ReasonUnsupported)
	case KindPDF:
		text, err := extractPDF(data)
		if err != nil {
			return skipped(source, fmt.Sprintf("%s: %v", ReasonPDF, err))
		}
		return textEntry(source, text)
	}

	if bytes.IndexByte(data, 0) >= 0 {
		return skipped(source, ReasonBinary)
	}
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	return textEntry(source, text)
}

func textEntry(source, text string) Entry {
	if strings.TrimSpace(text) == "" {
		return skipped(source, ReasonEmpty)
	}
	return Entry{Document: domain.Document{Text: text, Source: source}}
}

var errNoText = errors.New("no text layer")

// extractPDF returns the plain text of a PDF. The parser panics on some malformed files, which is reported as an error.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", errNoText
	}
	return strings.ToValidUTF8(string(raw), ""), nil
}
