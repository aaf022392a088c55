package corpus

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/santoshnarayanan/sda/internal/domain"
)

// Source enumerates corpus entries in a stable order. Walk stops at the first error returned by fn.
type Source interface {
	Walk(ctx context.Context, fn func(Entry) error) error
}

// ignoredDirs are never descended into.
var ignoredDirs = map[string]bool{
	".git": true, "node_modules": true, "__pycache__": true, "__MACOSX": true, ".venv": true,
}

func sizeLimit(n int64) int64 {
	if n <= 0 {
		return DefaultMaxFileBytes
	}
	return n
}

// Dir walks a directory tree. Sources are slash-separated paths relative to Root.
type Dir struct {
	Root     string
	MaxBytes int64
}

// Walk implements Source.
func (d Dir) Walk(ctx context.Context, fn func(Entry) error) error {
	limit := sizeLimit(d.MaxBytes)
	return filepath.WalkDir(d.Root, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			if p == d.Root {
				return fmt.Errorf("walk %s: %w", d.Root, err)
			}
			return fn(skipped(relSource(d.Root, p), fmt.Sprintf("%s: %v", ReasonRead, err)))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if de.IsDir() {
			if p != d.Root && ignoredDirs[de.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !de.Type().IsRegular() {
			return nil
		}

		source := relSource(d.Root, p)
		switch Classify(source) {
		case KindImage, KindUnsupported:
			return fn(ReadFile(source, nil))
		}

		info, err := de.Info()
		if err != nil {
			return fn(skipped(source, fmt.Sprintf("%s: %v", ReasonRead, err)))
		}
		if info.Size() > limit {
			return fn(skipped(source, ReasonTooLarge))
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fn(skipped(source, fmt.Sprintf("%s: %v", ReasonRead, err)))
		}
		return fn(ReadFile(source, data))
	})
}

func relSource(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		rel = p
	}
	return filepath.ToSlash(rel)
}

// Zip reads an in-memory zip archive. Directory entries and macOS resource forks are ignored.
type Zip struct {
	Data     []byte
	MaxBytes int64
}

// Walk implements Source.
func (z Zip) Walk(ctx context.Context, fn func(Entry) error) error {
	zr, err := zip.NewReader(bytes.NewReader(z.Data), int64(len(z.Data)))
	if err != nil {
		return fmt.Errorf("%w: open zip: %w", domain.ErrInvalidDocument, err)
	}
	limit := sizeLimit(z.MaxBytes)

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := strings.TrimPrefix(path.Clean("/"+f.Name), "/")
		if f.FileInfo().IsDir() || name == "" || inIgnoredDir(name) {
			continue
		}

		switch Classify(name) {
		case KindImage, KindUnsupported:
			if err := fn(ReadFile(name, nil)); err != nil {
				return err
			}
			continue
		}

		if f.UncompressedSize64 > uint64(limit) {
			if err := fn(skipped(name, ReasonTooLarge)); err != nil {
				return err
			}
			continue
		}
		data, err := readZipFile(f, limit)
		if err != nil {
			if err := fn(skipped(name, fmt.Sprintf("%s: %v", ReasonRead, err))); err != nil {
				return err
			}
			continue
		}
		if err := fn(ReadFile(name, data)); err != nil {
			return err
		}
	}
	return nil
}

func inIgnoredDir(name string) bool {
	parts := strings.Split(name, "/")
	for _, p := range parts[:len(parts)-1] {
		if ignoredDirs[p] {
			return true
		}
	}
	return false
}

// readZipFile reads at most limit bytes; the declared size is not trusted.
func readZipFile(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s", ReasonTooLarge)
	}
	return data, nil
}

// Documents serves caller-supplied documents. The file extension comes from Source.
type Documents []domain.Document

// Walk implements Source.
func (ds Documents) Walk(ctx context.Context, fn func(Entry) error) error {
	for _, d := range ds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.TrimSpace(d.Text) == "" {
			if err := fn(skipped(d.Source, ReasonEmpty)); err != nil {
				return err
			}
			continue
		}
		if d.Source == "" {
			d.Source = domain.UnknownSource
		}
		if err := fn(Entry{Document: d}); err != nil {
			return err
		}
	}
	return nil
}

// DoctypeChat marks documents that are chat turns.
const DoctypeChat = "chat"

// Chat tag keys.
const (
	TagRole      = "role"
	TagTurn      = "turn"
	TagTimestamp = "timestamp"
)

type chatLine struct {
	Timestamp string          `json:"timestamp"`
	Role      string          `json:"role"`
	Content   *string         `json:"content"`
	Turn      json.RawMessage `json:"turn"`
}

// Chat reads a JSONL chat log, one {timestamp, role, content, turn} object per line.
// Blank lines, invalid JSON and lines without content are ignored.
type Chat struct {
	R       io.Reader
	Session string
}

// Walk implements Source.
func (c Chat) Walk(ctx context.Context, fn func(Entry) error) error {
	sc := bufio.NewScanner(c.R)
	sc.Buffer(make([]byte, 64*1024), DefaultMaxFileBytes)

	idx := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var msg chatLine
		if err := json.Unmarshal([]byte(line), &msg); err != nil || msg.Content == nil {
			continue
		}

		turn := idx
		idx++
		content := strings.TrimSpace(*msg.Content)
		if content == "" {
			continue
		}
		role := msg.Role
		if role == "" {
			role = "user"
		}
		if n, err := strconv.Atoi(strings.Trim(string(msg.Turn), `"`)); err == nil {
			turn = n
		}

		tags := map[string]string{TagRole: role, TagTurn: strconv.Itoa(turn)}
		if msg.Timestamp != "" {
			tags[TagTimestamp] = msg.Timestamp
		}
		doc := domain.Document{
			Text:    content,
			Source:  fmt.Sprintf("chat:%s:%s", c.Session, role),
			Doctype: DoctypeChat,
			Tags:    tags,
		}
		if err := fn(Entry{Document: doc}); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read chat log: %w", err)
	}
	return nil
}
