package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/santoshnarayanan/sda/internal/chunker"
	"github.com/santoshnarayanan/sda/internal/repository/chromem"
	"github.com/santoshnarayanan/sda/internal/usecase/answer"
	"github.com/santoshnarayanan/sda/internal/usecase/collection"
	healthuc "github.com/santoshnarayanan/sda/internal/usecase/health"
	ingestuc "github.com/santoshnarayanan/sda/internal/usecase/ingest"
	"github.com/santoshnarayanan/sda/internal/usecase/retrieval"
)

const testDim = 4

// hashEmbedder folds bytes into testDim buckets and can be told to fail.
type hashEmbedder struct {
	err error
}

func (e *hashEmbedder) Dimension(context.Context) (int, error) { return testDim, nil }

func (e *hashEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	v := make([]float32, testDim)
	v[0] = 1
	for i := 0; i < len(text); i++ {
		v[int(text[i])%testDim]++
	}
	return v, nil
}

func (e *hashEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedOne(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, _, prompt string) (string, error) {
	return "answer for " + prompt[len(prompt)-5:], nil
}

type testEnv struct {
	handler http.Handler
	index   *collection.Service
	embed   *hashEmbedder
}

func newTestEnv(t *testing.T, gen answer.Generator) *testEnv {
	t.Helper()
	repo := chromem.NewInMemory()
	index := collection.New(collection.Backend{Collections: repo, Points: repo, Search: repo})
	embed := &hashEmbedder{}

	docs, err := chunker.NewSplitter(chunker.DocumentProfile)
	if err != nil {
		t.Fatal(err)
	}
	chat, err := chunker.NewSplitter(chunker.ChatProfile)
	if err != nil {
		t.Fatal(err)
	}

	ret := retrieval.New(index, embed, 3, nil)
	srv := NewServer(
		ingestuc.New(index, embed, docs, chat, ingestuc.Options{}, nil),
		ret,
		answer.New(ret, gen, 4, nil),
		healthuc.New(repo, map[string]healthuc.Checker{}),
		Options{DefaultTopK: 4, MaxChunks: 4},
		nil,
	)
	return &testEnv{handler: srv.Handler(), index: index, embed: embed}
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}

func nopLogger() *zap.Logger { return zap.NewNop() }
