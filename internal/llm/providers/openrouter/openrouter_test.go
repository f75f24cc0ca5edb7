package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Corphon/PersonaChat/internal/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := llm.GetProvider("openrouter", map[string]string{
		"api_key":       "sk-test",
		"base_url":      srv.URL,
		"default_model": "test/model",
		"app_name":      "Test App",
		"http_referer":  "http://test.local",
	})
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	return p.(*Provider)
}

func TestCompleteTextRequestShape(t *testing.T) {
	var body map[string]interface{}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("HTTP-Referer") != "http://test.local" || r.Header.Get("X-Title") != "Test App" {
			t.Errorf("missing attribution headers")
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  hello  "},"finish_reason":"stop"}],"model":"test/model"}`))
	})

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{
		SystemPrompt: "sys",
		Prompt:       "hi",
		Temperature:  0.7,
		MaxTokens:    50,
	})
	if err != nil {
		t.Fatalf("CompleteText: %v", err)
	}
	if resp.Text != "hello" {
		t.Errorf("text = %q, want trimmed", resp.Text)
	}

	if body["model"] != "test/model" || body["max_tokens"] != float64(50) {
		t.Errorf("body = %v", body)
	}
	messages, _ := body["messages"].([]interface{})
	if len(messages) != 2 {
		t.Fatalf("messages = %v", body["messages"])
	}
	if first := messages[0].(map[string]interface{}); first["role"] != "system" || first["content"] != "sys" {
		t.Errorf("first message = %v", first)
	}
}

func TestCompleteTextOmitsMaxTokens(t *testing.T) {
	var body map[string]interface{}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})
	if _, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["max_tokens"]; ok {
		t.Error("max_tokens should be omitted when zero")
	}
}

func TestCompleteTextErrors(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit exceeded"}}`))
	})
	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	if err == nil || !strings.Contains(err.Error(), "(429)") || !strings.Contains(err.Error(), "Rate limit exceeded") {
		t.Fatalf("err = %v", err)
	}

	empty := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})
	_, err = empty.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("want ErrEmptyResponse, got %v", err)
	}
}

func TestListModelsAndCheckKey(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			w.Write([]byte(`{"data":[{"id":"a/one","name":"One","context_length":4096},{"id":"b/two"},{"name":"no id"}]}`))
		case "/auth/key":
			w.Write([]byte(`{"credit":12.5}`))
		default:
			http.NotFound(w, r)
		}
	})

	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].ContextLength != 4096 || models[1].Name != "b/two" {
		t.Fatalf("models = %+v", models)
	}

	if err := p.FetchAvailableModels(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := p.GetSupportedModels(); len(got) != 2 || got[0] != "a/one" {
		t.Fatalf("supported = %v", got)
	}

	status, err := p.CheckKey(context.Background())
	if err != nil {
		t.Fatalf("CheckKey: %v", err)
	}
	if !status.Valid || status.Message != "Credits: 12.5" {
		t.Fatalf("status = %+v", status)
	}
}

func TestInitializeRequiresKey(t *testing.T) {
	if _, err := llm.GetProvider("openrouter", map[string]string{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestTestKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}]}`))
	}))
	defer srv.Close()

	p := New(srv.URL, "Test App", "http://test.local")
	if err := p.TestKey(context.Background(), "good", "m"); err != nil {
		t.Fatalf("good key: %v", err)
	}
	if err := p.TestKey(context.Background(), "bad", "m"); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("bad key err = %v", err)
	}
}
