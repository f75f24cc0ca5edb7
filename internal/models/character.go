// internal/models/character.go
package models

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// 角色的默认状态
const (
	DefaultCharacterName     = "New Character"
	DefaultCategory          = "fantasy"
	DefaultMood              = "neutral"
	DefaultOpinion           = "neutral"
	DefaultCharacterAction   = "standing idly"
	DefaultCharacterLocation = "a nondescript room"
)

// timestampLayout 固定宽度，保证字符串排序与时间排序一致
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Timestamp 格式化时间戳
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// Now 返回当前时间戳
func Now() string {
	return Timestamp(time.Now())
}

// Character 角色定义
type Character struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Personality   string   `json:"personality"`
	Greeting      string   `json:"greeting"`
	Category      string   `json:"category"`
	Appearance    string   `json:"appearance"`
	SpeakingStyle string   `json:"speaking_style"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
	Mood          string   `json:"mood"`
	Emotions      Emotions `json:"emotions"`
	OpinionOfUser string   `json:"opinion_of_user"`
	Action        string   `json:"action"`
	Location      string   `json:"location"`
}

// CharacterProfile 是可以通过 PUT 修改的字段，nil 表示保留原值
type CharacterProfile struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	Personality   *string `json:"personality"`
	Greeting      *string `json:"greeting"`
	Category      *string `json:"category"`
	Appearance    *string `json:"appearance"`
	SpeakingStyle *string `json:"speaking_style"`
}

// Apply 把非空字段写入角色
func (p CharacterProfile) Apply(c *Character) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.Name, p.Name)
	set(&c.Description, p.Description)
	set(&c.Personality, p.Personality)
	set(&c.Greeting, p.Greeting)
	set(&c.Category, p.Category)
	set(&c.Appearance, p.Appearance)
	set(&c.SpeakingStyle, p.SpeakingStyle)
}

// CharacterState 聊天线程中覆盖角色基础状态的快照
type CharacterState struct {
	Mood          string   `json:"mood"`
	Emotions      Emotions `json:"emotions"`
	OpinionOfUser string   `json:"opinion_of_user"`
	Action        string   `json:"action"`
}

// StateOf 从角色当前字段生成状态快照
func StateOf(c *Character) CharacterState {
	return CharacterState{
		Mood:          orDefault(c.Mood, DefaultMood),
		Emotions:      c.Emotions.Clone(),
		OpinionOfUser: orDefault(c.OpinionOfUser, DefaultOpinion),
		Action:        orDefault(c.Action, DefaultCharacterAction),
	}
}

// Overlay 用状态快照覆盖角色字段，空字段保留角色原值
func (s *CharacterState) Overlay(c *Character) {
	if s == nil {
		return
	}
	if s.Mood != "" {
		c.Mood = s.Mood
	}
	if s.Emotions != nil {
		c.Emotions = s.Emotions.Clone()
	}
	if s.OpinionOfUser != "" {
		c.OpinionOfUser = s.OpinionOfUser
	}
	if s.Action != "" {
		c.Action = s.Action
	}
}

// Emotions 情绪名到强度的映射。
// 解码时不会失败：非对象输入得到空映射，非数值的条目被丢弃，
// 数字字符串按数值处理，内容为JSON对象的字符串会再解一层。
type Emotions map[string]float64

// UnmarshalJSON 宽松解码
func (e *Emotions) UnmarshalJSON(data []byte) error {
	*e = ParseEmotions(data)
	return nil
}

// ParseEmotions 宽松地把任意JSON值转为情绪映射
func ParseEmotions(data []byte) Emotions {
	out := Emotions{}
	data = bytes.TrimSpace(data)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var s string
		if json.Unmarshal(data, &s) == nil && strings.HasPrefix(strings.TrimSpace(s), "{") {
			return ParseEmotions([]byte(s))
		}
		return out
	}

	for name, value := range raw {
		var f float64
		if json.Unmarshal(value, &f) == nil {
			out[name] = f
			continue
		}
		var s string
		if json.Unmarshal(value, &s) == nil {
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				out[name] = parsed
			}
		}
	}
	return out
}

// MarshalJSON nil 编码为 {}
func (e Emotions) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]float64(e))
}

// Clone 复制映射，nil 得到空映射
func (e Emotions) Clone() Emotions {
	out := make(Emotions, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// String 按情绪名排序输出 "joy: 0.8, curiosity: 0.6"
func (e Emotions) String() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strconv.FormatFloat(e[name], 'f', -1, 64))
	}
	return strings.Join(parts, ", ")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
