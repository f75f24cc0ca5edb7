package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const gardenReply = `{"text": "Welcome to my garden!", "mood": "happy", "emotions": {"joy": 0.9},
"opinion_of_user": "friendly", "action": "smiles", "location": "Moonlit Garden"}`

func TestCharacterCRUD(t *testing.T) {
	s := newTestServer(t)
	id := s.createCharacter(t, "Aria", "Hello, traveler.")

	w := s.do(t, http.MethodGet, "/api/characters/"+id, nil)
	expectStatus(t, w, http.StatusOK)
	var character struct {
		Name     string `json:"name"`
		Greeting string `json:"greeting"`
	}
	decodeData(t, w, &character)
	if character.Name != "Aria" || character.Greeting != "Hello, traveler." {
		t.Fatalf("unexpected character %+v", character)
	}

	w = s.do(t, http.MethodPut, "/api/characters/"+id, map[string]string{"name": "Aria the Bold"})
	expectStatus(t, w, http.StatusOK)
	decodeData(t, w, &character)
	if character.Name != "Aria the Bold" || character.Greeting != "Hello, traveler." {
		t.Fatalf("partial update lost fields: %+v", character)
	}

	w = s.do(t, http.MethodGet, "/api/characters", nil)
	expectStatus(t, w, http.StatusOK)
	var list []map[string]interface{}
	decodeData(t, w, &list)
	if len(list) != 1 {
		t.Fatalf("want 1 character, got %d", len(list))
	}

	w = s.do(t, http.MethodDelete, "/api/characters/"+id, nil)
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, http.MethodGet, "/api/characters/"+id, nil)
	expectStatus(t, w, http.StatusNotFound)
	resp := decode(t, w)
	if resp.Success || resp.Error == nil || resp.Error.Code != ErrorCharacterNotFound {
		t.Fatalf("unexpected not found body: %s", w.Body.String())
	}

	w = s.do(t, http.MethodDelete, "/api/characters/"+id, nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestCharacterMemoryRoutes(t *testing.T) {
	s := newTestServer(t)
	id := s.createCharacter(t, "Aria", "")

	w := s.do(t, http.MethodPost, "/api/characters/"+id+"/memory", map[string]string{"content": "Likes rain"})
	expectStatus(t, w, http.StatusCreated)

	w = s.do(t, http.MethodGet, "/api/characters/"+id+"/memory", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "Likes rain") {
		t.Fatalf("memory entry missing: %s", w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/characters/missing/memory", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestChatTurnEndpoint(t *testing.T) {
	s := newTestServer(t)
	chatID := s.createChat(t, s.createCharacter(t, "Aria", "Hello, traveler."))

	s.remote.queue(gardenReply, `{"scene_description": "Aria smiles among the roses."}`)
	w := s.do(t, http.MethodPost, "/api/chat/"+chatID, map[string]string{"message": "Hi there"})
	expectStatus(t, w, http.StatusOK)

	var turn struct {
		Response         string             `json:"response"`
		Mood             string             `json:"mood"`
		Emotions         map[string]float64 `json:"emotions"`
		Location         string             `json:"location"`
		SceneDescription string             `json:"scene_description"`
	}
	decodeData(t, w, &turn)
	if turn.Response != "Welcome to my garden!" || turn.Mood != "happy" {
		t.Errorf("unexpected turn %+v", turn)
	}
	if turn.Location != "Moonlit Garden" || turn.SceneDescription != "Aria smiles among the roses." {
		t.Errorf("unexpected scene %+v", turn)
	}

	w = s.do(t, http.MethodGet, "/api/chat/history/"+chatID, nil)
	expectStatus(t, w, http.StatusOK)
	var history struct {
		Conversations []map[string]interface{} `json:"conversations"`
	}
	decodeData(t, w, &history)
	if len(history.Conversations) != 2 {
		t.Fatalf("want greeting and one turn, got %d", len(history.Conversations))
	}
}

func TestChatTurnUpstreamFailure(t *testing.T) {
	s := newTestServer(t)
	chatID := s.createChat(t, s.createCharacter(t, "Aria", ""))

	s.remote.queueError(errors.New("provider returned 503"))
	w := s.do(t, http.MethodPost, "/api/chat/"+chatID, map[string]string{"message": "Hi"})
	expectStatus(t, w, http.StatusInternalServerError)

	resp := decode(t, w)
	if resp.Error.Code != ErrorUpstreamFailed || resp.Error.Message != "provider returned 503" {
		t.Fatalf("unexpected error %+v", resp.Error)
	}

	w = s.do(t, http.MethodGet, "/api/chat/history/"+chatID, nil)
	if strings.Contains(w.Body.String(), `"user_message":"Hi"`) {
		t.Fatal("failed turn must not be persisted")
	}
}

func TestChatUnknownAndMalformed(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/chat/missing", map[string]string{"message": "Hi"})
	expectStatus(t, w, http.StatusNotFound)
	if resp := decode(t, w); resp.Error.Code != ErrorChatNotFound {
		t.Errorf("code = %s", resp.Error.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/characters", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestGenerateJSONParseFailure(t *testing.T) {
	s := newTestServer(t)

	s.remote.queue("definitely not json")
	w := s.do(t, http.MethodPost, "/api/generate-json", map[string]string{"prompt": "List three fruits"})
	expectStatus(t, w, http.StatusBadRequest)

	resp := decode(t, w)
	if resp.Error.Code != ErrorInvalidModelOutput {
		t.Fatalf("code = %s", resp.Error.Code)
	}
	details, ok := resp.Error.Details.(map[string]interface{})
	if !ok || details["raw_response"] != "definitely not json" {
		t.Fatalf("raw response missing: %+v", resp.Error.Details)
	}

	s.remote.queue("```json\n{\"fruits\": [\"apple\"]}\n```")
	w = s.do(t, http.MethodPost, "/api/generate-json", map[string]string{"prompt": "List fruits as json"})
	expectStatus(t, w, http.StatusOK)
	var data struct {
		Fruits []string `json:"fruits"`
	}
	decodeData(t, w, &data)
	if len(data.Fruits) != 1 || data.Fruits[0] != "apple" {
		t.Fatalf("unexpected data %+v", data)
	}
}

func TestGenerateLocation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/generate-location", map[string]string{})
	expectStatus(t, w, http.StatusBadRequest)

	id := s.createCharacter(t, "Aria", "")
	s.remote.queueError(errors.New("offline"))
	w = s.do(t, http.MethodPost, "/api/generate-location", map[string]string{"character_id": id})
	expectStatus(t, w, http.StatusOK)
	var out struct {
		Location string `json:"location"`
	}
	decodeData(t, w, &out)
	if out.Location != "Nondescript Room" {
		t.Fatalf("Location = %q, want fallback", out.Location)
	}
}

func TestPromptsUpdateAndReset(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPut, "/api/prompts", map[string]string{"character_base": "You are {name}."})
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, http.MethodGet, "/api/prompts", nil)
	var templates map[string]string
	decodeData(t, w, &templates)
	if len(templates) != 1 || templates["character_base"] != "You are {name}." {
		t.Fatalf("update should replace the whole set: %v", templates)
	}

	w = s.do(t, http.MethodPost, "/api/prompts/reset", nil)
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, http.MethodGet, "/api/prompts", nil)
	decodeData(t, w, &templates)
	var defaults map[string]string
	decodeData(t, s.do(t, http.MethodGet, "/api/prompts/default", nil), &defaults)
	if len(templates) != len(defaults) || templates["location_generation"] != defaults["location_generation"] {
		t.Fatal("reset should restore the default templates")
	}
}

func TestExportMarkdownAttachment(t *testing.T) {
	s := newTestServer(t)
	chatID := s.createChat(t, s.createCharacter(t, "Aria", "Hello, traveler."))

	w := s.do(t, http.MethodGet, "/api/chats/"+chatID+"/export?format=markdown", nil)
	expectStatus(t, w, http.StatusOK)

	disposition := w.Header().Get("Content-Disposition")
	if !strings.HasPrefix(disposition, "attachment;") || !strings.Contains(disposition, ".md") {
		t.Fatalf("Content-Disposition = %q", disposition)
	}
	if !strings.Contains(w.Body.String(), "Hello, traveler.") {
		t.Fatalf("transcript missing greeting:\n%s", w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/chats/"+chatID+"/export?format=docx", nil)
	expectStatus(t, w, http.StatusBadRequest)
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/health", nil)
	generated := w.Header().Get(requestIDHeader)
	if generated == "" {
		t.Fatal("request id header missing")
	}
	if resp := decode(t, w); resp.RequestID != generated {
		t.Errorf("body request_id = %q, header = %q", resp.RequestID, generated)
	}

	const clientID = "3f2c1e9a-4b5d-4c6e-8f70-1a2b3c4d5e6f"
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, clientID)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != clientID {
		t.Errorf("client request id not kept: %q", got)
	}
}

func TestSystemEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/models", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"id":"local"`) {
		t.Fatalf("local model should always be listed: %s", w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/api/config/test-connection", map[string]string{"model": "openai/gpt-4o"})
	expectStatus(t, w, http.StatusBadRequest)

	for _, provider := range []string{"nonexistent", "local"} {
		w = s.do(t, http.MethodPut, "/api/config/llm", map[string]interface{}{"provider": provider})
		expectStatus(t, w, http.StatusBadRequest)
		if resp := decode(t, w); resp.Error.Code != ErrorLLMConfigInvalid {
			t.Errorf("provider %s: code = %s", provider, resp.Error.Code)
		}
	}

	w = s.do(t, http.MethodGet, "/api/diagnostic", nil)
	expectStatus(t, w, http.StatusOK)
	var diag struct {
		AppStatus string `json:"app_status"`
		Config    struct {
			APIKey string `json:"api_key"`
		} `json:"config"`
		Characters struct {
			Status string `json:"status"`
		} `json:"characters"`
	}
	decodeData(t, w, &diag)
	if diag.AppStatus != "Running" || diag.Config.APIKey != "Not set" {
		t.Errorf("unexpected diagnostic %+v", diag)
	}
	if diag.Characters.Status != "Found 0 characters" {
		t.Errorf("characters status = %q", diag.Characters.Status)
	}

	w = s.do(t, http.MethodGet, "/api/metrics", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "api_requests_total") {
		t.Errorf("metrics missing request counter: %s", w.Body.String())
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	cases := map[string]string{
		"invalid key sk-or-v1-abcdef123456":      "invalid key [REDACTED]",
		"header Bearer abc.def.ghi.jkl rejected": "header [REDACTED] rejected",
		"GET /models?key=AIzaSyExample1234":      "GET /models?[REDACTED]",
		"plain upstream failure":                 "plain upstream failure",
	}
	for in, want := range cases {
		if got := sanitizeErrorMessage(in); got != want {
			t.Errorf("sanitizeErrorMessage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestChatFeedReceivesTurns(t *testing.T) {
	s := newTestServer(t)
	chatID := s.createChat(t, s.createCharacter(t, "Aria", ""))

	server := httptest.NewServer(s.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chats/" + chatID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello map[string]interface{}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read connected: %v", err)
	}
	if hello["type"] != "connected" || hello["chat_id"] != chatID {
		t.Fatalf("unexpected hello %v", hello)
	}

	s.remote.queue(gardenReply, `{"scene_description": "Roses."}`)
	resp, err := http.Post(server.URL+"/api/chat/"+chatID, "application/json",
		strings.NewReader(`{"message": "Hi there"}`))
	if err != nil {
		t.Fatalf("post turn: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("turn status = %d", resp.StatusCode)
	}

	var pushed struct {
		Type   string `json:"type"`
		ChatID string `json:"chat_id"`
		Turn   struct {
			CharacterResponse string `json:"character_response"`
		} `json:"turn"`
	}
	if err := conn.ReadJSON(&pushed); err != nil {
		t.Fatalf("read turn: %v", err)
	}
	if pushed.Type != "turn" || pushed.Turn.CharacterResponse != "Welcome to my garden!" {
		t.Fatalf("unexpected push %+v", pushed)
	}

	if status := s.handler.Hub.GetStatus(); status["total_connections"] != 1 {
		t.Errorf("hub status = %v", status)
	}
}

func TestChatFeedUnknownChat(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/ws/chats/missing", nil)
	expectStatus(t, w, http.StatusNotFound)
}
