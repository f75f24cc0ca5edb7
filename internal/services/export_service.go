// internal/services/export_service.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "github.com/Corphon/PersonaChat/internal/errors"
	"github.com/Corphon/PersonaChat/internal/models"
	"github.com/jung-kurt/gofpdf"
)

var supportedExportFormats = []string{models.ExportJSON, models.ExportMarkdown, models.ExportText, models.ExportPDF}

var exportContentTypes = map[string]string{
	models.ExportJSON:     "application/json",
	models.ExportMarkdown: "text/markdown; charset=utf-8",
	models.ExportText:     "text/plain; charset=utf-8",
	models.ExportPDF:      "application/pdf",
}

// ExportService 导出聊天记录
type ExportService struct {
	chats      *ChatService
	characters *CharacterService
	exportDir  string
	now        func() time.Time
}

// NewExportService exportDir 为空时只生成内容，不落盘
func NewExportService(chats *ChatService, characters *CharacterService, exportDir string) *ExportService {
	return &ExportService{
		chats:      chats,
		characters: characters,
		exportDir:  exportDir,
		now:        time.Now,
	}
}

// exportData 各格式共用的导出数据
type exportData struct {
	chat      *models.ChatInstance
	character *models.Character
	scenario  string
	stats     *models.ExportStats
}

// ExportChat 按格式导出一个聊天线程
func (s *ExportService) ExportChat(chatID, format string) (*models.ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = models.ExportJSON
	}
	if format == "md" {
		format = models.ExportMarkdown
	}
	if !containsString(supportedExportFormats, format) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("不支持的导出格式: %s，支持的格式: %v", format, supportedExportFormats))
	}

	chat, err := s.chats.Get(chatID)
	if err != nil {
		return nil, err
	}

	data := &exportData{chat: chat, stats: ExportStatistics(chat.Conversations)}
	if character, err := s.characters.Get(chat.CharacterID); err == nil {
		data.character = character
	} else if !apperrors.IsNotFoundError(err) {
		return nil, err
	}
	if chat.ScenarioID != "" {
		if scenario, err := s.chats.scenarios.Get(chat.ScenarioID); err == nil {
			data.scenario = scenario.Title
		}
	}

	generatedAt := s.now()
	content, err := s.formatExportContent(data, format, generatedAt)
	if err != nil {
		return nil, apperrors.NewProcessingError("格式化导出内容失败", err)
	}

	result := &models.ExportResult{
		ChatID:      chat.ID,
		Title:       chat.Title,
		Format:      format,
		ContentType: exportContentTypes[format],
		Content:     content,
		GeneratedAt: generatedAt,
		FileSize:    int64(len(content)),
		Stats:       data.stats,
	}

	if s.exportDir != "" {
		path, size, err := s.saveExport(result)
		if err != nil {
			return nil, apperrors.NewProcessingError("保存导出文件失败", err)
		}
		result.FilePath = path
		result.FileSize = size
	}
	return result, nil
}

// ExportStatistics 统计对话轮数、玩家行动和情绪分布
func ExportStatistics(turns []models.ConversationTurn) *models.ExportStats {
	stats := &models.ExportStats{
		TotalTurns:          len(turns),
		Locations:           []string{},
		EmotionDistribution: map[string]int{},
	}

	seen := map[string]bool{}
	for i, turn := range turns {
		if i == 0 {
			stats.DateRange.StartDate = turn.Timestamp
		}
		stats.DateRange.EndDate = turn.Timestamp

		if turn.UserMessage != nil {
			stats.UserMessages++
		}
		if turn.IsPlayerAction {
			stats.PlayerActions++
			if turn.ActionSuccess != nil && *turn.ActionSuccess {
				stats.Successes++
			}
		}
		if turn.Location != "" && !seen[turn.Location] {
			seen[turn.Location] = true
			stats.Locations = append(stats.Locations, turn.Location)
		}
		for emotion := range turn.Emotions {
			stats.EmotionDistribution[emotion]++
		}
	}
	return stats
}

func (s *ExportService) formatExportContent(data *exportData, format string, generatedAt time.Time) ([]byte, error) {
	switch format {
	case models.ExportJSON:
		return s.formatAsJSON(data, generatedAt)
	case models.ExportMarkdown:
		return []byte(s.formatAsMarkdown(data, generatedAt)), nil
	case models.ExportText:
		return []byte(s.formatAsText(data, generatedAt)), nil
	case models.ExportPDF:
		return s.formatAsPDF(data, generatedAt)
	default:
		return nil, fmt.Errorf("不支持的格式: %s", format)
	}
}

func (s *ExportService) formatAsJSON(data *exportData, generatedAt time.Time) ([]byte, error) {
	export := map[string]interface{}{
		"chat_info": map[string]interface{}{
			"id":          data.chat.ID,
			"title":       data.chat.Title,
			"location":    data.chat.Location,
			"scenario_id": data.chat.ScenarioID,
			"created_at":  data.chat.CreatedAt,
			"updated_at":  data.chat.UpdatedAt,
		},
		"character":     data.character,
		"statistics":    data.stats,
		"conversations": data.chat.Conversations,
		"export_info": map[string]interface{}{
			"generated_at": generatedAt.Format("2006-01-02 15:04:05"),
			"format":       models.ExportJSON,
			"version":      "1.0",
		},
	}

	raw, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("JSON序列化失败: %w", err)
	}
	return raw, nil
}

func (s *ExportService) characterName(data *exportData) string {
	if data.character != nil {
		return data.character.Name
	}
	return "Character"
}

func (s *ExportService) formatAsMarkdown(data *exportData, generatedAt time.Time) string {
	var content strings.Builder
	name := s.characterName(data)

	fmt.Fprintf(&content, "# %s\n\n", data.chat.Title)
	fmt.Fprintf(&content, "- **Character**: %s\n", name)
	fmt.Fprintf(&content, "- **Location**: %s\n", data.chat.Location)
	if data.scenario != "" {
		fmt.Fprintf(&content, "- **Scenario**: %s\n", data.scenario)
	}
	fmt.Fprintf(&content, "- **Created**: %s\n", data.chat.CreatedAt)
	fmt.Fprintf(&content, "- **Exported**: %s\n\n", generatedAt.Format("2006-01-02 15:04:05"))

	content.WriteString("## Statistics\n\n")
	fmt.Fprintf(&content, "- **Turns**: %d\n", data.stats.TotalTurns)
	fmt.Fprintf(&content, "- **User messages**: %d\n", data.stats.UserMessages)
	if data.stats.PlayerActions > 0 {
		fmt.Fprintf(&content, "- **Player actions**: %d (%d succeeded)\n", data.stats.PlayerActions, data.stats.Successes)
	}
	if len(data.stats.Locations) > 0 {
		fmt.Fprintf(&content, "- **Locations**: %s\n", strings.Join(data.stats.Locations, ", "))
	}
	if emotions := sortedDistribution(data.stats.EmotionDistribution); emotions != "" {
		fmt.Fprintf(&content, "- **Emotions**: %s\n", emotions)
	}

	content.WriteString("\n## Transcript\n\n")
	for _, turn := range data.chat.Conversations {
		fmt.Fprintf(&content, "### %s\n\n", turn.Timestamp)
		if turn.SceneDescription != "" {
			fmt.Fprintf(&content, "*%s*\n\n", turn.SceneDescription)
		}
		if turn.UserMessage != nil {
			fmt.Fprintf(&content, "**User**: %s\n\n", *turn.UserMessage)
		}
		fmt.Fprintf(&content, "**%s** (%s): %s\n\n", name, turn.Mood, turn.CharacterResponse)
		if turn.Action != "" {
			fmt.Fprintf(&content, "> %s\n\n", turn.Action)
		}
	}
	return content.String()
}

func (s *ExportService) formatAsText(data *exportData, generatedAt time.Time) string {
	var content strings.Builder
	name := s.characterName(data)

	content.WriteString(data.chat.Title + "\n")
	content.WriteString(strings.Repeat("=", len([]rune(data.chat.Title))) + "\n\n")
	fmt.Fprintf(&content, "Character: %s\nLocation: %s\nExported: %s\n\n",
		name, data.chat.Location, generatedAt.Format("2006-01-02 15:04:05"))

	for _, line := range transcriptLines(data.chat.Conversations, name) {
		content.WriteString(line + "\n")
	}
	return content.String()
}

// formatAsPDF 使用内置字体，非 cp1252 字符经转换表替换
func (s *ExportService) formatAsPDF(data *exportData, generatedAt time.Time) ([]byte, error) {
	name := s.characterName(data)

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(data.chat.Title, true)
	pdf.SetAuthor(name, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 10, tr(data.chat.Title), "", "L", false)

	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 6, tr(fmt.Sprintf("Character: %s    Location: %s", name, data.chat.Location)), "", "L", false)
	pdf.MultiCell(0, 6, tr(fmt.Sprintf("Turns: %d    Exported: %s",
		data.stats.TotalTurns, generatedAt.Format("2006-01-02 15:04:05"))), "", "L", false)
	pdf.Ln(4)

	for _, turn := range data.chat.Conversations {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, tr(turn.Timestamp), "", "L", false)
		if turn.SceneDescription != "" {
			pdf.MultiCell(0, 5, tr(turn.SceneDescription), "", "L", false)
		}

		pdf.SetFont("Helvetica", "", 11)
		if turn.UserMessage != nil {
			pdf.MultiCell(0, 6, tr("User: "+*turn.UserMessage), "", "L", false)
		}
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%s (%s): %s", name, turn.Mood, turn.CharacterResponse)), "", "L", false)
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("生成PDF失败: %w", err)
	}
	return buf.Bytes(), nil
}

func transcriptLines(turns []models.ConversationTurn, name string) []string {
	lines := make([]string, 0, len(turns)*3)
	for _, turn := range turns {
		lines = append(lines, "["+turn.Timestamp+"]")
		if turn.UserMessage != nil {
			lines = append(lines, "User: "+*turn.UserMessage)
		}
		lines = append(lines, fmt.Sprintf("%s (%s): %s", name, turn.Mood, turn.CharacterResponse), "")
	}
	return lines
}

func sortedDistribution(dist map[string]int) string {
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s (%d)", k, dist[k]))
	}
	return strings.Join(parts, ", ")
}

func (s *ExportService) saveExport(result *models.ExportResult) (string, int64, error) {
	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return "", 0, fmt.Errorf("创建导出目录失败: %w", err)
	}

	timestamp := result.GeneratedAt.Format("20060102_150405")
	ext := result.Format
	if ext == models.ExportMarkdown {
		ext = "md"
	}
	filePath := filepath.Join(s.exportDir, fmt.Sprintf("%s_transcript_%s.%s", result.ChatID, timestamp, ext))

	if err := os.WriteFile(filePath, result.Content, 0644); err != nil {
		return "", 0, fmt.Errorf("写入导出文件失败: %w", err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("获取文件信息失败: %w", err)
	}
	return filePath, info.Size(), nil
}
