package local

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Corphon/PersonaChat/internal/llm"
)

func TestCompleteText(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"response":"  local reply \n"}`))
	}))
	defer srv.Close()

	p, err := llm.GetProvider("local", map[string]string{"url": srv.URL})
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{
		SystemPrompt: "SYS",
		Prompt:       "USER",
		Temperature:  0.7,
	})
	if err != nil {
		t.Fatalf("CompleteText: %v", err)
	}
	if resp.Text != "local reply" {
		t.Errorf("text = %q", resp.Text)
	}
	if body["prompt"] != "SYS\n\nUSER\n\nAssistant: " {
		t.Errorf("prompt = %q", body["prompt"])
	}
	if body["max_tokens"] != float64(defaultMaxTokens) {
		t.Errorf("max_tokens = %v", body["max_tokens"])
	}
}

func TestCompleteTextRawPrompt(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"response":"{}"}`))
	}))
	defer srv.Close()

	p := New(srv.URL)
	if _, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "as is", MaxTokens: 2000}); err != nil {
		t.Fatal(err)
	}
	if body["prompt"] != "as is" || body["max_tokens"] != float64(2000) {
		t.Errorf("body = %v", body)
	}
}

func TestPingAndErrors(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"response":"hello"}`))
	}))
	defer srv.Close()

	p := New(srv.URL)
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	status = http.StatusServiceUnavailable
	if err := p.Ping(context.Background()); err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v", err)
	}
	if _, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error on 503")
	}
}
