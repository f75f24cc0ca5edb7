// internal/services/chat_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Corphon/PersonaChat/internal/config"
	apperrors "github.com/Corphon/PersonaChat/internal/errors"
	"github.com/Corphon/PersonaChat/internal/models"
	"github.com/Corphon/PersonaChat/internal/storage"
	"github.com/Corphon/PersonaChat/internal/utils"
	"github.com/google/uuid"
)

// TurnBroadcaster 在一轮对话保存后接收通知
type TurnBroadcaster interface {
	BroadcastTurn(chatID string, turn models.ConversationTurn)
}

// ChatService 聊天线程的增删改查与对话流程
type ChatService struct {
	store      storage.Store
	characters *CharacterService
	scenarios  *ScenarioService
	templates  *TemplateService
	memory     *MemoryService
	llm        *LLMService
	narrator   *SceneNarrator

	broadcaster TurnBroadcaster
}

// NewChatService 创建聊天服务
func NewChatService(
	store storage.Store,
	characters *CharacterService,
	scenarios *ScenarioService,
	templates *TemplateService,
	memory *MemoryService,
	llmService *LLMService,
	narrator *SceneNarrator,
) *ChatService {
	return &ChatService{
		store:      store,
		characters: characters,
		scenarios:  scenarios,
		templates:  templates,
		memory:     memory,
		llm:        llmService,
		narrator:   narrator,
	}
}

// SetBroadcaster 设置对话通知的接收者
func (s *ChatService) SetBroadcaster(b TurnBroadcaster) {
	s.broadcaster = b
}

// List 返回全部聊天线程，最近更新的在前
func (s *ChatService) List() ([]*models.ChatInstance, error) {
	ids, err := s.store.List(config.ChatInstancesDir)
	if err != nil {
		return nil, apperrors.NewProcessingError("读取聊天列表失败", err)
	}

	chats := make([]*models.ChatInstance, 0, len(ids))
	for _, id := range ids {
		chat, err := s.Get(id)
		if err != nil {
			utils.GetLogger().Warn("跳过无法读取的聊天", map[string]interface{}{
				"chat_id": id,
				"error":   err.Error(),
			})
			continue
		}
		chats = append(chats, chat)
	}

	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt > chats[j].UpdatedAt
	})
	return chats, nil
}

// Get 读取聊天线程
func (s *ChatService) Get(id string) (*models.ChatInstance, error) {
	var chat models.ChatInstance
	if err := s.store.Get(config.ChatInstancesDir, id, &chat); err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidID) {
			return nil, apperrors.NewNotFoundError("Chat instance not found", err)
		}
		return nil, apperrors.NewProcessingError("读取聊天失败", err)
	}
	if chat.Conversations == nil {
		chat.Conversations = []models.ConversationTurn{}
	}
	return &chat, nil
}

// History 返回聊天线程的全部对话
func (s *ChatService) History(id string) ([]models.ConversationTurn, error) {
	chat, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return chat.Conversations, nil
}

func (s *ChatService) save(chat *models.ChatInstance) error {
	if err := s.store.Put(config.ChatInstancesDir, chat.ID, chat); err != nil {
		return apperrors.NewProcessingError("保存聊天失败", err)
	}
	return nil
}

// Create 新建聊天线程。角色有问候语时写入一轮没有用户消息的开场
func (s *ChatService) Create(req models.ChatCreateRequest) (*models.ChatInstance, error) {
	if strings.TrimSpace(req.CharacterID) == "" {
		return nil, apperrors.NewValidationError("Character ID is required")
	}

	character, err := s.characters.Get(req.CharacterID)
	if err != nil {
		return nil, err
	}

	var scenario *models.Scenario
	if req.ScenarioID != "" {
		if scenario, err = s.scenarios.Get(req.ScenarioID); err != nil {
			return nil, err
		}
	}

	location := req.Location
	if location == "" && scenario != nil {
		location = scenario.StartingLocation
	}
	if location == "" {
		location = orDefault(character.Location, models.DefaultCharacterLocation)
	}

	title := req.Title
	if title == "" {
		title = "Chat with " + character.Name
	}

	now := models.Now()
	state := models.StateOf(character)
	chat := &models.ChatInstance{
		ID:             uuid.New().String(),
		CharacterID:    character.ID,
		Title:          title,
		CreatedAt:      now,
		UpdatedAt:      now,
		Location:       location,
		ScenarioID:     req.ScenarioID,
		Conversations:  []models.ConversationTurn{},
		CharacterState: &state,
	}

	if character.Greeting != "" {
		chat.Conversations = append(chat.Conversations, models.ConversationTurn{
			Timestamp:         now,
			UserMessage:       nil,
			CharacterResponse: character.Greeting,
			Mood:              state.Mood,
			Emotions:          state.Emotions.Clone(),
			Action:            orDefault(character.Action, "greeting you warmly"),
			Location:          location,
			SceneDescription:  fmt.Sprintf("%s stands in %s, ready to engage in conversation.", character.Name, location),
		})
	}

	if err := s.save(chat); err != nil {
		return nil, err
	}

	utils.GetLogger().Info("聊天已创建", map[string]interface{}{
		"chat_id":      chat.ID,
		"character_id": character.ID,
		"scenario_id":  req.ScenarioID,
	})
	return chat, nil
}

// Update 修改标题、位置或绑定的场景
func (s *ChatService) Update(id string, update models.ChatUpdate) (*models.ChatInstance, error) {
	chat, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		chat.Title = *update.Title
	}
	if update.Location != nil {
		chat.Location = *update.Location
	}
	if update.ScenarioID != nil {
		if *update.ScenarioID != "" && !s.scenarios.Exists(*update.ScenarioID) {
			return nil, apperrors.NewNotFoundError("Scenario not found", nil)
		}
		chat.ScenarioID = *update.ScenarioID
	}
	chat.UpdatedAt = models.Now()

	if err := s.save(chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// Delete 删除聊天线程
func (s *ChatService) Delete(id string) error {
	if err := s.store.Delete(config.ChatInstancesDir, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidID) {
			return apperrors.NewNotFoundError("Chat instance not found", err)
		}
		return apperrors.NewProcessingError("删除聊天失败", err)
	}
	return nil
}

// Turn 处理一轮对话：组装提示词、调用模型、规范化回复、生成场景描写并保存
func (s *ChatService) Turn(ctx context.Context, chatID string, req models.ChatTurnRequest) (*models.ChatTurnResponse, error) {
	chat, err := s.Get(chatID)
	if err != nil {
		return nil, err
	}

	character, err := s.characters.Get(chat.CharacterID)
	if err != nil {
		return nil, err
	}

	// 聊天线程的状态覆盖角色的基础状态
	chat.CharacterState.Overlay(character)
	if chat.Location != "" {
		character.Location = chat.Location
	} else {
		character.Location = orDefault(character.Location, models.DefaultCharacterLocation)
	}
	if character.Emotions == nil {
		character.Emotions = models.Emotions{}
	}

	success := req.Succeeded()
	systemPrompt, err := s.buildPrompt(chat, character, req.Message, req.IsPlayerAction, success)
	if err != nil {
		return nil, err
	}

	var action *models.PlayerAction
	modelMessage := req.Message
	if req.IsPlayerAction {
		if parsed, ok := models.ParsePlayerAction(req.Message); ok {
			action = parsed
			modelMessage = fmt.Sprintf("*Attempts to %s* (%s)", parsed.Action, successLabel(success))
		}
	}

	raw, err := s.llm.Complete(ctx, ModelRequest{
		SystemPrompt: systemPrompt,
		UserMessage:  modelMessage,
		Temperature:  0.7,
		UseLocal:     req.UseLocalModel,
	})
	if err != nil {
		return nil, err
	}

	record := FinalizeReply(NormalizeResponse(raw))

	scene := s.narrator.Narrate(ctx, NarrationInput{
		Character:      character,
		Record:         record,
		UserMessage:    req.Message,
		IsPlayerAction: req.IsPlayerAction,
		ActionSuccess:  success,
		UseLocal:       req.UseLocalModel,
	})

	chat.CharacterState = &models.CharacterState{
		Mood:          record.Mood,
		Emotions:      record.Emotions.Clone(),
		OpinionOfUser: record.OpinionOfUser,
		Action:        record.Action,
	}

	if loc := strings.TrimSpace(record.Location); loc != "" &&
		loc != models.PlaceholderLocation && loc != character.Location {
		chat.Location = loc
	}
	if chat.Location == "" {
		chat.Location = character.Location
	}

	now := models.Now()
	userMessage := modelMessage
	turn := models.ConversationTurn{
		Timestamp:         now,
		UserMessage:       &userMessage,
		CharacterResponse: record.Text,
		Mood:              record.Mood,
		Emotions:          record.Emotions.Clone(),
		Action:            record.Action,
		Location:          chat.Location,
		SceneDescription:  scene,
	}
	if action != nil {
		turn.IsPlayerAction = true
		turn.PlayerAction = action.Action
		turn.ActionSuccess = &success
		turn.ActionDetails = action.Details
	}

	chat.Conversations = append(chat.Conversations, turn)
	chat.UpdatedAt = now
	if err := s.save(chat); err != nil {
		return nil, err
	}

	if err := s.memory.AppendTurn(character.ID, turn); err != nil {
		utils.GetLogger().Warn("写入记忆失败", map[string]interface{}{
			"character_id": character.ID,
			"error":        err.Error(),
		})
	}

	utils.GetMetricsCollector().RecordChatTurn(turn.IsPlayerAction)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastTurn(chat.ID, turn)
	}

	return &models.ChatTurnResponse{
		Response:         record.Text,
		Mood:             record.Mood,
		Emotions:         record.Emotions,
		OpinionOfUser:    record.OpinionOfUser,
		Action:           record.Action,
		Location:         chat.Location,
		SceneDescription: scene,
	}, nil
}

// buildPrompt 组合场景上下文、角色提示词和本轮说明
func (s *ChatService) buildPrompt(chat *models.ChatInstance, character *models.Character, message string, isPlayerAction, success bool) (string, error) {
	templates, err := s.templates.Get()
	if err != nil {
		return "", err
	}

	var memories []models.MemoryEntry
	if doc, err := s.memory.Get(character.ID); err == nil {
		memories = doc.Memories
	} else {
		utils.GetLogger().Warn("读取记忆失败，忽略记忆", map[string]interface{}{
			"character_id": character.ID,
			"error":        err.Error(),
		})
	}

	scenarioContext := ""
	if chat.ScenarioID != "" {
		scenario, err := s.scenarios.Get(chat.ScenarioID)
		switch {
		case err == nil:
			scenarioContext = ScenarioContext(scenario, chat.Location)
		case apperrors.IsNotFoundError(err):
			// 场景被删除后按无场景处理
		default:
			return "", err
		}
	}

	characterPrompt := BuildSystemPrompt(templates, character, memories, chat.Conversations)
	return ComposeSystemPrompt(scenarioContext, characterPrompt, message, isPlayerAction, success), nil
}

func successLabel(success bool) string {
	if success {
		return "Success"
	}
	return "Failure"
}
