package generate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewSelectsProvider(t *testing.T) {
	if _, err := New(Options{Provider: "openai"}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
	p, err := New(Options{Provider: "openai", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New openai: %v", err)
	}
	if p.Name() != "openai" {
		t.Fatalf("name = %q", p.Name())
	}
	p, err = New(Options{Provider: "ollama"})
	if err != nil {
		t.Fatalf("New ollama: %v", err)
	}
	if p.Name() != "ollama" {
		t.Fatalf("name = %q", p.Name())
	}
	if _, err := New(Options{Provider: "mystery"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestNewDefaultsToOpenAI(t *testing.T) {
	p, err := New(Options{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Name() != "openai" {
		t.Fatalf("name = %q", p.Name())
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"FILE: unit-tests/pom.xml"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", "gpt-4o-mini")
	p.url = srv.URL

	out, err := p.Generate(context.Background(), "generate tests")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "FILE: unit-tests/pom.xml" {
		t.Fatalf("got %q", out)
	}
}

func TestOpenAIGenerateSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-bad", "")
	p.url = srv.URL

	_, err := p.Generate(context.Background(), "generate tests")
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got != "openai 401: invalid api key" {
		t.Fatalf("unexpected error: %q", got)
	}
}

func TestOpenAIGenerateEmptyPromptErrors(t *testing.T) {
	p := NewOpenAI("sk-test", "")
	if _, err := p.Generate(context.Background(), ""); err == nil {
		t.Fatalf("expected error on empty prompt")
	}
}

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"hello world"}`))
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "test-model")
	out, err := p.Generate(context.Background(), "test prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "hello world" {
		t.Fatalf("got %q", out)
	}
}

func TestOllamaGenerateIncludesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'llama3' not found"}`))
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "llama3")
	_, err := p.Generate(context.Background(), "test prompt")
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got != "ollama 404: model 'llama3' not found" {
		t.Fatalf("unexpected error: %q", got)
	}
}

func TestBuildPromptUnit(t *testing.T) {
	out := BuildPrompt("# Repository Context\nsrc/A.java", "cover the parser", true, false)
	if !strings.Contains(out, "FILE: unit-tests/pom.xml") {
		t.Fatalf("missing unit output contract")
	}
	if strings.Contains(out, "bdd-tests/") {
		t.Fatalf("unit prompt must not mention bdd files")
	}
	if !strings.Contains(out, "USER PROMPT:\ncover the parser") {
		t.Fatalf("missing user prompt")
	}
	if !strings.Contains(out, "# Repository Context") {
		t.Fatalf("missing repository context")
	}
}

func TestBuildPromptBDD(t *testing.T) {
	out := BuildPrompt("ctx", "", false, true)
	if !strings.Contains(out, "FILE: bdd-tests/pom.xml") {
		t.Fatalf("missing bdd output contract")
	}
	if strings.Contains(out, "unit-tests/") {
		t.Fatalf("bdd prompt must not mention unit files")
	}
	if strings.Contains(out, "USER PROMPT") {
		t.Fatalf("empty user prompt must be omitted")
	}
}
