package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Corphon/PersonaChat/internal/llm"
	"github.com/Corphon/PersonaChat/internal/services"
	"github.com/Corphon/PersonaChat/internal/storage"
	"github.com/gin-gonic/gin"
)

// scriptedProvider 按顺序返回预设回复
type scriptedProvider struct {
	mu      sync.Mutex
	name    string
	replies []scriptedReply
}

type scriptedReply struct {
	text string
	err  error
}

func (p *scriptedProvider) queue(texts ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, text := range texts {
		p.replies = append(p.replies, scriptedReply{text: text})
	}
}

func (p *scriptedProvider) queueError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, scriptedReply{err: err})
}

func (p *scriptedProvider) Initialize(map[string]string) error         { return nil }
func (p *scriptedProvider) GetName() string                            { return p.name }
func (p *scriptedProvider) GetSupportedModels() []string               { return []string{"test-model"} }
func (p *scriptedProvider) FetchAvailableModels(context.Context) error { return nil }
func (p *scriptedProvider) SetCustomModels([]string)                   {}

func (p *scriptedProvider) CompleteText(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.replies) == 0 {
		return &llm.CompletionResponse{Text: "ok", ProviderName: p.name}, nil
	}
	next := p.replies[0]
	p.replies = p.replies[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &llm.CompletionResponse{Text: next.text, ProviderName: p.name, TokensUsed: 10}, nil
}

type testServer struct {
	router  *gin.Engine
	handler *Handler
	remote  *scriptedProvider
	local   *scriptedProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dataDir := t.TempDir()
	store, err := storage.NewFileStorage(dataDir)
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}

	remote := &scriptedProvider{name: "remote"}
	local := &scriptedProvider{name: "local"}
	llmService := services.NewLLMServiceWithProviders(remote, local, "test-model")

	templates := services.NewTemplateService(store)
	if err := templates.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	memory := services.NewMemoryService(store)
	characters := services.NewCharacterService(store, memory)
	scenarios := services.NewScenarioService(store)
	narrator := services.NewSceneNarrator(llmService)
	chats := services.NewChatService(store, characters, scenarios, templates, memory, llmService, narrator)

	hub := NewChatHub()
	t.Cleanup(hub.Close)
	chats.SetBroadcaster(hub)

	handler := &Handler{
		Characters: characters,
		Memory:     memory,
		Chats:      chats,
		Scenarios:  scenarios,
		Templates:  templates,
		LLM:        llmService,
		Narrator:   narrator,
		Generation: services.NewGenerationService(llmService),
		Export:     services.NewExportService(chats, characters, filepath.Join(dataDir, "exports")),
		Hub:        hub,
		Response:   NewResponseHelper(),
	}

	return &testServer{
		router:  SetupRouter(handler, true),
		handler: handler,
		remote:  remote,
		local:   local,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// decodedResponse 测试中使用的响应结构，data 保留原始JSON
type decodedResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string      `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) decodedResponse {
	t.Helper()
	var resp decodedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) decodedResponse {
	t.Helper()
	resp := decode(t, w)
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("decode data %q: %v", string(resp.Data), err)
	}
	return resp
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, want, w.Body.String())
	}
}

func (s *testServer) createCharacter(t *testing.T, name, greeting string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/characters", map[string]string{
		"name":        name,
		"description": "A keeper of old books",
		"personality": "Curious and warm",
		"greeting":    greeting,
	})
	expectStatus(t, w, http.StatusCreated)

	var character struct {
		ID string `json:"id"`
	}
	decodeData(t, w, &character)
	if character.ID == "" {
		t.Fatal("created character has no id")
	}
	return character.ID
}

func (s *testServer) createChat(t *testing.T, characterID string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/chats", map[string]string{"character_id": characterID})
	expectStatus(t, w, http.StatusCreated)

	var chat struct {
		ID string `json:"id"`
	}
	decodeData(t, w, &chat)
	return chat.ID
}
