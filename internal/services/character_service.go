// internal/services/character_service.go
package services

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Corphon/PersonaChat/internal/config"
	apperrors "github.com/Corphon/PersonaChat/internal/errors"
	"github.com/Corphon/PersonaChat/internal/models"
	"github.com/Corphon/PersonaChat/internal/storage"
	"github.com/Corphon/PersonaChat/internal/utils"
	"github.com/google/uuid"
)

// CharacterService 处理角色相关的业务逻辑
type CharacterService struct {
	store  storage.Store
	memory *MemoryService
}

// NewCharacterService 创建角色服务
func NewCharacterService(store storage.Store, memory *MemoryService) *CharacterService {
	return &CharacterService{store: store, memory: memory}
}

// List 返回全部角色，按创建时间排序
func (s *CharacterService) List() ([]*models.Character, error) {
	ids, err := s.store.List(config.CharactersDir)
	if err != nil {
		return nil, apperrors.NewProcessingError("读取角色列表失败", err)
	}

	characters := make([]*models.Character, 0, len(ids))
	for _, id := range ids {
		character, err := s.Get(id)
		if err != nil {
			// 单个损坏的文件不影响列表
			utils.GetLogger().Warn("跳过无法读取的角色", map[string]interface{}{
				"character_id": id,
				"error":        err.Error(),
			})
			continue
		}
		characters = append(characters, character)
	}

	sort.SliceStable(characters, func(i, j int) bool {
		return characters[i].CreatedAt < characters[j].CreatedAt
	})
	return characters, nil
}

// Count 返回角色数量
func (s *CharacterService) Count() (int, error) {
	ids, err := s.store.List(config.CharactersDir)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Get 读取角色
func (s *CharacterService) Get(id string) (*models.Character, error) {
	var character models.Character
	if err := s.store.Get(config.CharactersDir, id, &character); err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidID) {
			return nil, apperrors.NewNotFoundError("Character not found", err)
		}
		return nil, apperrors.NewProcessingError("读取角色失败", err)
	}
	if character.Emotions == nil {
		character.Emotions = models.Emotions{}
	}
	return &character, nil
}

// Create 用默认状态创建角色，并初始化空记忆
func (s *CharacterService) Create(profile models.CharacterProfile) (*models.Character, error) {
	now := models.Now()
	character := &models.Character{
		ID:            uuid.New().String(),
		Name:          models.DefaultCharacterName,
		Category:      models.DefaultCategory,
		CreatedAt:     now,
		UpdatedAt:     now,
		Mood:          models.DefaultMood,
		Emotions:      models.Emotions{},
		OpinionOfUser: models.DefaultOpinion,
		Action:        models.DefaultCharacterAction,
		Location:      models.DefaultCharacterLocation,
	}
	profile.Apply(character)

	if err := s.store.Put(config.CharactersDir, character.ID, character); err != nil {
		return nil, apperrors.NewProcessingError("保存角色失败", err)
	}
	if err := s.memory.Init(character.ID); err != nil {
		return nil, err
	}

	utils.GetLogger().Info("角色已创建", map[string]interface{}{
		"character_id": character.ID,
		"name":         character.Name,
	})
	return character, nil
}

// Update 只修改资料字段，缺失的字段保留原值
func (s *CharacterService) Update(id string, profile models.CharacterProfile) (*models.Character, error) {
	character, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	profile.Apply(character)
	character.UpdatedAt = models.Now()

	if err := s.store.Put(config.CharactersDir, id, character); err != nil {
		return nil, apperrors.NewProcessingError("保存角色失败", err)
	}
	return character, nil
}

// Delete 删除角色及其记忆
func (s *CharacterService) Delete(id string) error {
	if err := s.store.Delete(config.CharactersDir, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidID) {
			return apperrors.NewNotFoundError("Character not found", err)
		}
		return apperrors.NewProcessingError("删除角色失败", err)
	}

	if err := s.memory.Delete(id); err != nil {
		return fmt.Errorf("删除角色记忆失败: %w", err)
	}

	utils.GetLogger().Info("角色已删除", map[string]interface{}{"character_id": id})
	return nil
}
