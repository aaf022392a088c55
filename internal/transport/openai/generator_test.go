package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Model != "chat-model" || len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "x",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": "  hi there \n"}}},
		})
	}))
	defer srv.Close()

	g := NewGenerator(GeneratorConfig{APIKey: "k", BaseURL: srv.URL, Model: "chat-model"})
	out, err := g.Generate(context.Background(), "system prompt", "question")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "hi there" {
		t.Errorf("Generate = %q", out)
	}
}

func TestGenerator_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "x", "choices": []any{}})
	}))
	defer srv.Close()

	g := NewGenerator(GeneratorConfig{APIKey: "k", BaseURL: srv.URL, Model: "chat-model"})
	if _, err := g.Generate(context.Background(), "s", "p"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestGenerator_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGenerator(GeneratorConfig{APIKey: "k", BaseURL: srv.URL, Model: "chat-model"})
	if _, err := g.Generate(context.Background(), "s", "p"); err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerator_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer srv.Close()

	g := NewGenerator(GeneratorConfig{APIKey: "k", BaseURL: srv.URL, Model: "chat-model"})
	if err := g.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
