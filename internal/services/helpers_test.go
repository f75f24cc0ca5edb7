package services

import (
	"context"
	"sync"
	"testing"

	"github.com/Corphon/PersonaChat/internal/llm"
	"github.com/Corphon/PersonaChat/internal/models"
	"github.com/Corphon/PersonaChat/internal/storage"
)

// fakeProvider 按顺序返回预设回复并记录收到的请求
type fakeProvider struct {
	mu       sync.Mutex
	name     string
	replies  []fakeReply
	requests []llm.CompletionRequest
}

type fakeReply struct {
	text string
	err  error
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{name: name}
}

func (f *fakeProvider) reply(texts ...string) *fakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range texts {
		f.replies = append(f.replies, fakeReply{text: t})
	}
	return f
}

func (f *fakeProvider) fail(err error) *fakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, fakeReply{err: err})
	return f
}

func (f *fakeProvider) calls() []llm.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.CompletionRequest{}, f.requests...)
}

func (f *fakeProvider) Initialize(map[string]string) error { return nil }
func (f *fakeProvider) GetName() string                    { return f.name }
func (f *fakeProvider) GetSupportedModels() []string       { return []string{"test-model"} }
func (f *fakeProvider) FetchAvailableModels(context.Context) error {
	return nil
}
func (f *fakeProvider) SetCustomModels([]string) {}

func (f *fakeProvider) CompleteText(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if len(f.replies) == 0 {
		return &llm.CompletionResponse{Text: "ok", ProviderName: f.name}, nil
	}
	next := f.replies[0]
	f.replies = f.replies[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &llm.CompletionResponse{Text: next.text, ProviderName: f.name}, nil
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	turns map[string][]models.ConversationTurn
}

func (b *recordingBroadcaster) BroadcastTurn(chatID string, turn models.ConversationTurn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.turns == nil {
		b.turns = map[string][]models.ConversationTurn{}
	}
	b.turns[chatID] = append(b.turns[chatID], turn)
}

// testEnv 基于临时目录的一整套服务
type testEnv struct {
	store      storage.Store
	remote     *fakeProvider
	local      *fakeProvider
	llm        *LLMService
	templates  *TemplateService
	memory     *MemoryService
	characters *CharacterService
	scenarios  *ScenarioService
	chats      *ChatService
	generation *GenerationService
	narrator   *SceneNarrator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}

	env := &testEnv{
		store:  store,
		remote: newFakeProvider("remote"),
		local:  newFakeProvider("local"),
	}
	env.llm = NewLLMServiceWithProviders(env.remote, env.local, "test-model")
	env.templates = NewTemplateService(store)
	env.memory = NewMemoryService(store)
	env.characters = NewCharacterService(store, env.memory)
	env.scenarios = NewScenarioService(store)
	env.narrator = NewSceneNarrator(env.llm)
	env.chats = NewChatService(store, env.characters, env.scenarios, env.templates, env.memory, env.llm, env.narrator)
	env.generation = NewGenerationService(env.llm)

	if err := env.templates.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	return env
}

func (e *testEnv) createCharacter(t *testing.T, name, greeting string) *models.Character {
	t.Helper()
	character, err := e.characters.Create(models.CharacterProfile{
		Name:        strPtr(name),
		Description: strPtr("A keeper of old books"),
		Personality: strPtr("Curious and warm"),
		Greeting:    strPtr(greeting),
	})
	if err != nil {
		t.Fatalf("Create character: %v", err)
	}
	return character
}

func boolPtr(b bool) *bool { return &b }
