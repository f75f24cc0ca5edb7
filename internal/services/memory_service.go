// internal/services/memory_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Corphon/PersonaChat/internal/config"
	apperrors "github.com/Corphon/PersonaChat/internal/errors"
	"github.com/Corphon/PersonaChat/internal/models"
	"github.com/Corphon/PersonaChat/internal/storage"
)

// 整理记忆时原样保留的最近对话数
const keepRecentConversations = 10

// MemoryService 管理每个角色的记忆文件
type MemoryService struct {
	store storage.Store
}

// NewMemoryService 创建记忆服务
func NewMemoryService(store storage.Store) *MemoryService {
	return &MemoryService{store: store}
}

// Init 写入空记忆
func (s *MemoryService) Init(characterID string) error {
	if err := s.store.Put(config.MemoryDir, characterID, models.NewMemoryDocument()); err != nil {
		return apperrors.NewProcessingError("初始化记忆失败", err)
	}
	return nil
}

// Get 读取记忆，文件不存在时返回空记忆
func (s *MemoryService) Get(characterID string) (*models.MemoryDocument, error) {
	doc := models.NewMemoryDocument()
	err := s.store.Get(config.MemoryDir, characterID, doc)
	if errors.Is(err, storage.ErrNotFound) {
		return models.NewMemoryDocument(), nil
	}
	if err != nil {
		return nil, apperrors.NewProcessingError("读取记忆失败", err)
	}
	if doc.Memories == nil {
		doc.Memories = []models.MemoryEntry{}
	}
	if doc.Conversations == nil {
		doc.Conversations = []models.ConversationTurn{}
	}
	return doc, nil
}

func (s *MemoryService) save(characterID string, doc *models.MemoryDocument) error {
	if err := s.store.Put(config.MemoryDir, characterID, doc); err != nil {
		return apperrors.NewProcessingError("保存记忆失败", err)
	}
	return nil
}

// AddEntry 追加一条长期记忆
func (s *MemoryService) AddEntry(characterID, content string) (*models.MemoryEntry, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("Memory content is required")
	}

	doc, err := s.Get(characterID)
	if err != nil {
		return nil, err
	}

	entry := models.MemoryEntry{Timestamp: models.Now(), Content: content}
	doc.Memories = append(doc.Memories, entry)
	if err := s.save(characterID, doc); err != nil {
		return nil, err
	}
	return &entry, nil
}

// AppendTurn 把一轮对话加入记忆中的对话记录
func (s *MemoryService) AppendTurn(characterID string, turn models.ConversationTurn) error {
	doc, err := s.Get(characterID)
	if err != nil {
		return err
	}
	doc.Conversations = append(doc.Conversations, turn)
	return s.save(characterID, doc)
}

// Delete 删除记忆文件，不存在时忽略
func (s *MemoryService) Delete(characterID string) error {
	err := s.store.Delete(config.MemoryDir, characterID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// SummarizeDocument 保留最近的对话，把更早的对话按天汇总为记忆。
// 返回每一天的汇总，包括当天情绪强度的平均值
func SummarizeDocument(doc *models.MemoryDocument) []models.DaySummary {
	if len(doc.Conversations) <= keepRecentConversations {
		return []models.DaySummary{}
	}

	cut := len(doc.Conversations) - keepRecentConversations
	older := doc.Conversations[:cut]
	recent := append([]models.ConversationTurn{}, doc.Conversations[cut:]...)

	// 按首次出现的顺序分组
	var days []string
	byDay := map[string][]models.ConversationTurn{}
	for _, turn := range older {
		day := strings.SplitN(turn.Timestamp, "T", 2)[0]
		if _, ok := byDay[day]; !ok {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], turn)
	}

	summaries := make([]models.DaySummary, 0, len(days))
	for _, day := range days {
		turns := byDay[day]

		summary := models.DaySummary{Day: day, Count: len(turns), Emotions: models.Emotions{}}
		sums := map[string]float64{}
		counts := map[string]int{}
		for _, turn := range turns {
			if turn.IsPlayerAction {
				summary.Actions++
				if turn.ActionSuccess != nil && *turn.ActionSuccess {
					summary.Successes++
				}
			}
			for emotion, intensity := range turn.Emotions {
				sums[emotion] += intensity
				counts[emotion]++
			}
		}
		for emotion, total := range sums {
			summary.Emotions[emotion] = total / float64(counts[emotion])
		}

		summary.Summary = fmt.Sprintf("Summary of %d conversations on %s.", summary.Count, day)
		if summary.Actions > 0 {
			summary.Summary += fmt.Sprintf(" The user attempted %d actions, succeeding on %d of them.", summary.Actions, summary.Successes)
		}

		doc.Memories = append(doc.Memories, models.MemoryEntry{
			Timestamp: day + "T00:00:00Z",
			Content:   summary.Summary,
		})
		summaries = append(summaries, summary)
	}

	doc.Conversations = recent
	return summaries
}

// Summarize 整理角色记忆并保存
func (s *MemoryService) Summarize(characterID string) (*models.MemoryDocument, []models.DaySummary, error) {
	doc, err := s.Get(characterID)
	if err != nil {
		return nil, nil, err
	}

	summaries := SummarizeDocument(doc)
	if len(summaries) > 0 {
		if err := s.save(characterID, doc); err != nil {
			return nil, nil, err
		}
	}
	return doc, summaries, nil
}
