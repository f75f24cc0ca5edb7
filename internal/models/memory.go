// internal/models/memory.go
package models

// MemoryEntry 长期记忆的一条
type MemoryEntry struct {
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

// MemoryDocument 每个角色一份的记忆文件
type MemoryDocument struct {
	Memories      []MemoryEntry      `json:"memories"`
	Conversations []ConversationTurn `json:"conversations"`
}

// NewMemoryDocument 返回空记忆
func NewMemoryDocument() *MemoryDocument {
	return &MemoryDocument{
		Memories:      []MemoryEntry{},
		Conversations: []ConversationTurn{},
	}
}

// DaySummary 一天旧对话的汇总
type DaySummary struct {
	Day       string   `json:"day"`
	Count     int      `json:"count"`
	Actions   int      `json:"actions"`
	Successes int      `json:"successes"`
	Summary   string   `json:"summary"`
	Emotions  Emotions `json:"emotions"`
}
