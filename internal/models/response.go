// internal/models/response.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// 解析失败时的默认字段
const (
	DefaultResponseAction   = "standing still"
	DefaultResponseLocation = PlaceholderLocation
	FallbackReplyText       = "I'm not sure what to say right now."
)

// ResponseRecord 模型回复规范化后的六个字段，所有字段总是存在
type ResponseRecord struct {
	Text          string   `json:"text"`
	Mood          string   `json:"mood"`
	Emotions      Emotions `json:"emotions"`
	OpinionOfUser string   `json:"opinion_of_user"`
	Action        string   `json:"action"`
	Location      string   `json:"location"`
}

// DefaultRecord 以原始文本为 text 的默认记录
func DefaultRecord(raw string) ResponseRecord {
	return ResponseRecord{
		Text:          raw,
		Mood:          DefaultMood,
		Emotions:      Emotions{},
		OpinionOfUser: DefaultOpinion,
		Action:        DefaultResponseAction,
		Location:      DefaultResponseLocation,
	}
}

// PlayerAction 玩家行动消息，前端把它序列化为JSON字符串放在 message 中
type PlayerAction struct {
	Action          string      `json:"action"`
	RelevantStat    string      `json:"relevantStat"`
	RollValue       interface{} `json:"rollValue"`
	DifficultyClass interface{} `json:"difficultyClass"`
	Details         string      `json:"details"`
}

// ParsePlayerAction 解析玩家行动消息，action 缺失时视为解析失败
func ParsePlayerAction(message string) (*PlayerAction, bool) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(message), &raw); err != nil {
		return nil, false
	}
	action, ok := raw["action"]
	if !ok || action == nil {
		return nil, false
	}

	pa := &PlayerAction{
		Action:          stringify(action),
		RelevantStat:    stringify(raw["relevantStat"]),
		RollValue:       raw["rollValue"],
		DifficultyClass: raw["difficultyClass"],
		Details:         stringify(raw["details"]),
	}
	if pa.RelevantStat == "" {
		pa.RelevantStat = "strength"
	}
	if pa.RollValue == nil {
		pa.RollValue = 0
	}
	if pa.DifficultyClass == nil {
		pa.DifficultyClass = 10
	}
	return pa, true
}

// Stat 首字母大写的能力名
func (p *PlayerAction) Stat() string {
	if p.RelevantStat == "" {
		return ""
	}
	lower := strings.ToLower(p.RelevantStat)
	r, size := utf8.DecodeRuneInString(lower)
	return string(unicode.ToUpper(r)) + lower[size:]
}

// Roll 掷骰结果文本
func (p *PlayerAction) Roll() string {
	return fmt.Sprint(p.RollValue)
}

// DC 难度等级文本
func (p *PlayerAction) DC() string {
	return fmt.Sprint(p.DifficultyClass)
}
