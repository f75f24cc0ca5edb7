// internal/models/export.go
package models

import (
	"time"
)

// 导出格式
const (
	ExportJSON     = "json"
	ExportMarkdown = "markdown"
	ExportText     = "txt"
	ExportPDF      = "pdf"
)

// ExportResult 聊天记录导出结果
type ExportResult struct {
	ChatID      string       `json:"chat_id"`
	Title       string       `json:"title"`
	Format      string       `json:"format"`
	ContentType string       `json:"content_type"`
	Content     []byte       `json:"-"`
	GeneratedAt time.Time    `json:"generated_at"`
	FilePath    string       `json:"file_path"` // 导出文件路径
	FileSize    int64        `json:"file_size"` // 文件大小
	Stats       *ExportStats `json:"stats,omitempty"`
}

// ExportStats 导出统计
type ExportStats struct {
	TotalTurns    int       `json:"total_turns"`
	UserMessages  int       `json:"user_messages"`
	PlayerActions int       `json:"player_actions"`
	Successes     int       `json:"successes"`
	Locations     []string  `json:"locations"`
	DateRange     DateRange `json:"date_range"`
	// 每种情绪出现的次数
	EmotionDistribution map[string]int `json:"emotion_distribution"`
}

// DateRange 日期范围
type DateRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}
