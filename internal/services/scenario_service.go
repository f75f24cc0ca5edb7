// internal/services/scenario_service.go
package services

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Corphon/PersonaChat/internal/config"
	apperrors "github.com/Corphon/PersonaChat/internal/errors"
	"github.com/Corphon/PersonaChat/internal/models"
	"github.com/Corphon/PersonaChat/internal/storage"
	"github.com/Corphon/PersonaChat/internal/utils"
	"github.com/google/uuid"
)

// ScenarioService 管理场景文件
type ScenarioService struct {
	store storage.Store
	now   func() time.Time
}

// NewScenarioService 创建场景服务
func NewScenarioService(store storage.Store) *ScenarioService {
	return &ScenarioService{store: store, now: time.Now}
}

func (s *ScenarioService) epoch() float64 {
	return float64(s.now().UnixNano()) / float64(time.Second)
}

// List 返回场景元数据，最近更新的在前
func (s *ScenarioService) List() ([]models.ScenarioSummary, error) {
	ids, err := s.store.List(config.ScenariosDir)
	if err != nil {
		return nil, apperrors.NewProcessingError("读取场景列表失败", err)
	}

	summaries := make([]models.ScenarioSummary, 0, len(ids))
	for _, id := range ids {
		scenario, err := s.Get(id)
		if err != nil {
			utils.GetLogger().Warn("跳过无法读取的场景", map[string]interface{}{
				"scenario_id": id,
				"error":       err.Error(),
			})
			continue
		}
		summaries = append(summaries, scenario.Summary())
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt > summaries[j].UpdatedAt
	})
	return summaries, nil
}

// Get 读取完整场景
func (s *ScenarioService) Get(id string) (*models.Scenario, error) {
	var scenario models.Scenario
	if err := s.store.Get(config.ScenariosDir, id, &scenario); err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidID) {
			return nil, apperrors.NewNotFoundError("Scenario not found", err)
		}
		return nil, apperrors.NewProcessingError("读取场景失败", err)
	}
	if scenario.ID == "" {
		scenario.ID = id
	}
	return &scenario, nil
}

// Exists 场景是否存在
func (s *ScenarioService) Exists(id string) bool {
	return id != "" && s.store.Exists(config.ScenariosDir, id)
}

// Create 保存新场景。客户端给出的合法 id 会被沿用
func (s *ScenarioService) Create(scenario *models.Scenario) (*models.Scenario, error) {
	if strings.TrimSpace(scenario.Title) == "" {
		return nil, apperrors.NewValidationError("Title is required")
	}

	if scenario.ID == "" || !validDocumentID(scenario.ID) {
		scenario.ID = uuid.New().String()
	}

	now := s.epoch()
	if scenario.CreatedAt == 0 {
		scenario.CreatedAt = now
	}
	scenario.UpdatedAt = now

	if err := s.store.Put(config.ScenariosDir, scenario.ID, scenario); err != nil {
		return nil, apperrors.NewProcessingError("保存场景失败", err)
	}

	utils.GetLogger().Info("场景已创建", map[string]interface{}{
		"scenario_id": scenario.ID,
		"title":       scenario.Title,
	})
	return scenario, nil
}

// Update 整体替换场景内容，保留 id 和 created_at
func (s *ScenarioService) Update(id string, scenario *models.Scenario) (*models.Scenario, error) {
	existing, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	scenario.ID = id
	scenario.CreatedAt = existing.CreatedAt
	scenario.UpdatedAt = s.epoch()

	if err := s.store.Put(config.ScenariosDir, id, scenario); err != nil {
		return nil, apperrors.NewProcessingError("保存场景失败", err)
	}
	return scenario, nil
}

// Delete 删除场景
func (s *ScenarioService) Delete(id string) error {
	if err := s.store.Delete(config.ScenariosDir, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidID) {
			return apperrors.NewNotFoundError("Scenario not found or could not be deleted", err)
		}
		return apperrors.NewProcessingError("删除场景失败", err)
	}
	return nil
}

// validDocumentID 能安全用作文件名的 id
func validDocumentID(id string) bool {
	if id == "." || id == ".." || len(id) > 128 {
		return false
	}
	return !strings.ContainsAny(id, "/\\\x00")
}
