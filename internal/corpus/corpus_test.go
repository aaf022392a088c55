package corpus

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santoshnarayanan/sda/internal/domain"
)

func collect(t *testing.T, s Source) []Entry {
	t.Helper()
	var out []Entry
	require.NoError(t, s.Walk(context.Background(), func(e Entry) error {
		out = append(out, e)
		return nil
	}))
	return out
}

func bySource(entries []Entry) map[string]Entry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Document.Source] = e
	}
	return m
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"main.py", KindText},
		{"src/App.TSX", KindText},
		{"README.md", KindText},
		{"conf/settings.toml", KindText},
		{"cmd/main.go", KindText},
		{"paper.pdf", KindPDF},
		{"logo.PNG", KindImage},
		{"icon.svg", KindImage},
		{"app.exe", KindUnsupported},
		{"Makefile", KindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.name))
		})
	}
}

func TestReadFile(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		e := ReadFile("a.txt", []byte("hello"))
		assert.False(t, e.Skipped())
		assert.Equal(t, "hello", e.Document.Text)
		assert.Equal(t, ".txt", e.Document.FileExt())
	})
	t.Run("binary", func(t *testing.T) {
		e := ReadFile("a.json", []byte{'{', 0, '}'})
		assert.Equal(t, ReasonBinary, e.Skip)
	})
	t.Run("invalid utf8 is repaired", func(t *testing.T) {
		e := ReadFile("a.md", []byte("ok\xff text"))
		require.False(t, e.Skipped())
		assert.Equal(t, "ok text", e.Document.Text)
	})
	t.Run("blank", func(t *testing.T) {
		assert.Equal(t, ReasonEmpty, ReadFile("a.txt", []byte(" \n\t")).Skip)
	})
	t.Run("image", func(t *testing.T) {
		assert.Equal(t, ReasonImage, ReadFile("a.png", []byte{1, 2}).Skip)
	})
	t.Run("unsupported", func(t *testing.T) {
		assert.Equal(t, ReasonUnsupported, ReadFile("a.bin", nil).Skip)
	})
	t.Run("broken pdf", func(t *testing.T) {
		e := ReadFile("a.pdf", []byte("%PDF-1.4 not really"))
		require.True(t, e.Skipped())
		assert.True(t, strings.HasPrefix(e.Skip, ReasonPDF), e.Skip)
	})
}

func TestDir_Walk(t *testing.T) {
	root := t.TempDir()
	write := func(rel string, data []byte) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o600))
	}
	write("main.py", []byte("print('hi')"))
	write("docs/guide.md", []byte("# Guide\n\ntext"))
	write("assets/logo.png", []byte{0x89, 'P', 'N', 'G'})
	write("node_modules/x/index.js", []byte("ignored"))
	write(".git/HEAD", []byte("ref"))
	write("big.txt", bytes.Repeat([]byte("a"), 32))

	entries := collect(t, Dir{Root: root, MaxBytes: 16})
	got := bySource(entries)

	assert.Len(t, entries, 4)
	assert.False(t, got["main.py"].Skipped())
	assert.Equal(t, "# Guide\n\ntext", got["docs/guide.md"].Document.Text)
	assert.Equal(t, ReasonImage, got["assets/logo.png"].Skip)
	assert.Equal(t, ReasonTooLarge, got["big.txt"].Skip)
	assert.NotContains(t, got, "node_modules/x/index.js")
}

func TestDir_MissingRoot(t *testing.T) {
	err := Dir{Root: filepath.Join(t.TempDir(), "missing")}.Walk(context.Background(), func(Entry) error { return nil })
	assert.Error(t, err)
}

func TestDir_StopsOnCallbackError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("b"), 0o600))

	stop := errors.New("stop")
	calls := 0
	err := Dir{Root: root}.Walk(context.Background(), func(Entry) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestZip_Walk(t *testing.T) {
	data := buildZip(t, map[string]string{
		"proj/":                   "",
		"proj/app.jsx":            "export default App",
		"proj/notes.txt":          "notes",
		"proj/pic.jpg":            "jpg",
		"proj/tool.bin":           "bin",
		"__MACOSX/proj/._app.jsx": "fork",
	})

	got := bySource(collect(t, Zip{Data: data}))

	assert.Len(t, got, 4)
	assert.Equal(t, "export default App", got["proj/app.jsx"].Document.Text)
	assert.False(t, got["proj/notes.txt"].Skipped())
	assert.Equal(t, ReasonImage, got["proj/pic.jpg"].Skip)
	assert.Equal(t, ReasonUnsupported, got["proj/tool.bin"].Skip)
}

func TestZip_SizeCap(t *testing.T) {
	data := buildZip(t, map[string]string{"a.txt": strings.Repeat("x", 100)})
	got := collect(t, Zip{Data: data, MaxBytes: 10})
	require.Len(t, got, 1)
	assert.Equal(t, ReasonTooLarge, got[0].Skip)
}

func TestZip_Invalid(t *testing.T) {
	err := Zip{Data: []byte("not a zip")}.Walk(context.Background(), func(Entry) error { return nil })
	assert.ErrorIs(t, err, domain.ErrInvalidDocument)
}

func TestDocuments_Walk(t *testing.T) {
	docs := Documents{
		{Text: "alpha", Source: "a.md", Doctype: "note", Tags: map[string]string{"team": "x"}},
		{Text: "  ", Source: "blank.txt"},
		{Text: "beta"},
	}
	got := collect(t, docs)
	require.Len(t, got, 3)
	assert.Equal(t, "note", got[0].Document.Doctype)
	assert.Equal(t, "x", got[0].Document.Tags["team"])
	assert.Equal(t, ReasonEmpty, got[1].Skip)
	assert.Equal(t, domain.UnknownSource, got[2].Document.Source)
}

func TestChat_Walk(t *testing.T) {
	log := strings.Join([]string{
		`{"timestamp":"2024-01-01T00:00:00Z","role":"user","content":"How do I deploy?","turn":0}`,
		``,
		`not json`,
		`{"role":"assistant"}`,
		`{"role":"assistant","content":"  Use the CLI.  ","turn":"7"}`,
		`{"content":"no role"}`,
	}, "\n")

	got := collect(t, Chat{R: strings.NewReader(log), Session: "s1"})
	require.Len(t, got, 3)

	first := got[0].Document
	assert.Equal(t, "chat:s1:user", first.Source)
	assert.Equal(t, DoctypeChat, first.Doctype)
	assert.Equal(t, "0", first.Tags[TagTurn])
	assert.Equal(t, "2024-01-01T00:00:00Z", first.Tags[TagTimestamp])

	second := got[1].Document
	assert.Equal(t, "Use the CLI.", second.Text)
	assert.Equal(t, "7", second.Tags[TagTurn])
	assert.Equal(t, "chat:s1:assistant", second.Source)

	third := got[2].Document
	assert.Equal(t, "user", third.Tags[TagRole])
	assert.Equal(t, "2", third.Tags[TagTurn])
	assert.NotContains(t, third.Tags, TagTimestamp)
}

func TestWalk_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Documents{{Text: "a"}}.Walk(ctx, func(Entry) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
