// internal/models/scenario.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// 世界规模
const (
	WorldSmall  = "small"
	WorldMedium = "medium"
	WorldLarge  = "large"
)

// Scenario 场景（世界设定）
type Scenario struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	WorldSize        string     `json:"world_size,omitempty"`
	StartingLocation string     `json:"starting_location,omitempty"`
	WorldRules       TextList   `json:"world_rules,omitempty"`
	Locations        []Location `json:"locations,omitempty"`
	NPCs             []NPC      `json:"npcs,omitempty"`
	Conflicts        []Conflict `json:"conflicts,omitempty"`

	// 只在中型和大型世界中进入提示词
	History FreeText `json:"history,omitempty"`
	// 只在大型世界中进入提示词
	PoliticalStructure FreeText `json:"political_structure,omitempty"`
	Economy            FreeText `json:"economy,omitempty"`
	Geography          FreeText `json:"geography,omitempty"`

	// Unix 秒
	CreatedAt float64 `json:"created_at,omitempty"`
	UpdatedAt float64 `json:"updated_at,omitempty"`
}

// ScenarioSummary 列表接口返回的元数据
type ScenarioSummary struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	WorldSize   string  `json:"world_size"`
	CreatedAt   float64 `json:"created_at"`
	UpdatedAt   float64 `json:"updated_at"`
}

// Summary 提取元数据，缺省世界规模为 medium
func (s *Scenario) Summary() ScenarioSummary {
	title := s.Title
	if title == "" {
		title = "Untitled Scenario"
	}
	size := s.WorldSize
	if size == "" {
		size = WorldMedium
	}
	return ScenarioSummary{
		ID:          s.ID,
		Title:       title,
		Description: s.Description,
		WorldSize:   size,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// TextList 接受单个字符串或字符串数组
type TextList []string

// UnmarshalJSON 宽松解码
func (t *TextList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}

	var list []interface{}
	if err := json.Unmarshal(data, &list); err == nil {
		out := make(TextList, 0, len(list))
		for _, item := range list {
			if s := strings.TrimSpace(stringify(item)); s != "" {
				out = append(out, s)
			}
		}
		*t = out
		return nil
	}

	var single interface{}
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if s := strings.TrimSpace(stringify(single)); s != "" {
		*t = TextList{s}
	} else {
		*t = nil
	}
	return nil
}

// String 用分号连接
func (t TextList) String() string {
	return strings.Join(t, "; ")
}

// FreeText 接受任意JSON值，统一为文本
type FreeText string

// UnmarshalJSON 字符串原样保留，数组按行连接，其他值保留JSON文本
func (f *FreeText) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*f = ""
	case []interface{}:
		lines := make([]string, 0, len(val))
		for _, item := range val {
			lines = append(lines, stringify(item))
		}
		*f = FreeText(strings.Join(lines, "\n"))
	default:
		*f = FreeText(stringify(val))
	}
	return nil
}

// Location 世界中的地点。存储中可能是对象或字符串
type Location struct {
	Name        string
	Description string
	Type        string
	Extra       map[string]interface{}
}

// NPC 世界中的人物
type NPC struct {
	Name        string
	Description string
	Role        string
	Motivation  string
	Extra       map[string]interface{}
}

// Conflict 世界中的冲突
type Conflict struct {
	Name        string
	Description string
	Type        string
	Extra       map[string]interface{}
}

// RoleOrMotivation 返回角色定位，缺失时用动机代替
func (n NPC) RoleOrMotivation() string {
	if n.Role != "" {
		return n.Role
	}
	if n.Motivation != "" {
		return n.Motivation
	}
	return "Unknown"
}

func (l *Location) UnmarshalJSON(data []byte) error {
	fields, err := decodeEntity(data, &l.Name, map[string]*string{
		"description": &l.Description,
		"type":        &l.Type,
	})
	l.Extra = fields
	return err
}

func (l Location) MarshalJSON() ([]byte, error) {
	return encodeEntity(l.Extra, map[string]string{
		"name":        l.Name,
		"description": l.Description,
		"type":        l.Type,
	})
}

func (n *NPC) UnmarshalJSON(data []byte) error {
	fields, err := decodeEntity(data, &n.Name, map[string]*string{
		"description": &n.Description,
		"role":        &n.Role,
		"motivation":  &n.Motivation,
	})
	n.Extra = fields
	return err
}

func (n NPC) MarshalJSON() ([]byte, error) {
	return encodeEntity(n.Extra, map[string]string{
		"name":        n.Name,
		"description": n.Description,
		"role":        n.Role,
		"motivation":  n.Motivation,
	})
}

func (c *Conflict) UnmarshalJSON(data []byte) error {
	fields, err := decodeEntity(data, &c.Name, map[string]*string{
		"description": &c.Description,
		"type":        &c.Type,
	})
	c.Extra = fields
	return err
}

func (c Conflict) MarshalJSON() ([]byte, error) {
	return encodeEntity(c.Extra, map[string]string{
		"name":        c.Name,
		"description": c.Description,
		"type":        c.Type,
	})
}

// decodeEntity 解析对象或裸字符串。已知键写入对应字段，其余键原样返回
func decodeEntity(data []byte, name *string, known map[string]*string) (map[string]interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	obj, ok := v.(map[string]interface{})
	if !ok {
		// 旧数据里地点和人物可能只是一个名字
		*name = stringify(v)
		return nil, nil
	}

	var extra map[string]interface{}
	for key, value := range obj {
		if key == "name" {
			*name = stringify(value)
			continue
		}
		if dst, ok := known[key]; ok {
			*dst = stringify(value)
			continue
		}
		if extra == nil {
			extra = map[string]interface{}{}
		}
		extra[key] = value
	}
	return extra, nil
}

func encodeEntity(extra map[string]interface{}, known map[string]string) ([]byte, error) {
	out := make(map[string]interface{}, len(extra)+len(known))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range known {
		if v != "" || k == "name" {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// stringify 把任意解码后的JSON值转为文本
func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64, bool:
		return fmt.Sprint(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
