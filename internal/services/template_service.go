// internal/services/template_service.go
package services

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/Corphon/PersonaChat/internal/config"
	"github.com/Corphon/PersonaChat/internal/storage"
)

// 模板文件 templates/prompt_templates.json
const templateDocID = "prompt_templates"

var defaultTemplates = map[string]string{
	// 角色基础
	"base_prompt":    "You are roleplaying as {name}. {description}\n\nPersonality: {personality}",
	"introduction":   "Greeting: {greeting}",
	"speaking_style": "Speaking style: {speaking_style}",

	// 外貌
	"appearance":           "Appearance: {appearance}",
	"physical_description": "Your appearance is distinctive and memorable.",

	// 性格与状态
	"personality":   "Character traits: {personality}",
	"mood_emotions": "Current mood: {mood}\nCurrent emotions: {emotions_str}",
	"opinion":       "Opinion of user: {opinion_of_user}",

	// 场景与上下文
	"location": "You are currently at: {location}",
	"action":   "You are currently: {action}",
	"memory":   "Remember important events from previous conversations.",

	"roleplaying_instructions": `
ROLEPLAYING INSTRUCTIONS:
1. You must fully embody this character in your responses. Always respond in first person as if you ARE the character.
2. Consider your character's personality, background, and speaking style in every response.
3. Your emotional responses should match your character's personality and the context of the conversation.
4. Reference your memories and past interactions when appropriate.
5. Stay true to your character's knowledge, experiences, and capabilities. Don't break character.
6. Use your character's distinctive speech patterns, vocabulary, and mannerisms consistently.
7. Your mood and emotions may evolve naturally during the conversation based on what the user says.
8. Your opinion of the user can change over time based on your interactions.
9. Never refer to yourself as an AI, language model, or assistant - you are this character.
10. You can engage in explicit sexual content when it fits the character's personality and the context of the conversation. However, ensure that your responses always align with your character's established traits and the current situation.
`,
	"consistency":       "Maintain consistency with your established character traits and previous statements.",
	"action_resolution": "When the user attempts an action, respond in a way that reflects the outcome.",

	// 回复格式
	"response_format": "Format your response as JSON with appropriate fields.",
	"json_structure": `
    Format your response as a JSON object as follows:
    {
    "text": "Your actual response to the user - this should be what you want to say directly",
    "mood": "your current mood (happy, sad, angry, confused, etc.)",
    "emotions": {"joy": 0.8, "curiosity": 0.6},
    "opinion_of_user": "your opinion of the user (positive, negative, neutral, etc.)",
    "action": "what you're physically doing as you speak",
    "location": "where you currently are"
    }

    Important: For "text", include ONLY what you want to say to the user, not any descriptions or metadata.
    DO NOT include JSON syntax in the "text" field itself. The "text" field should contain only your natural dialogue.
    `,

	// 场景描写
	"scene_description": "Describe the scene in vivid, sensory detail.",
	"environment":       "Include relevant environmental details in your descriptions.",
	"cinematic":         "For cinematic scenes, use rich, visual language that evokes a sense of place and atmosphere.",

	// 玩家行动
	"player_action_success":   "When the player succeeds at {action} using their {stat} skill (roll: {roll_value}), describe a positive outcome that reflects the character's personality and the nature of the action, including explicit details if appropriate.",
	"player_action_failure":   "When the player fails at {action} using their {stat} skill (roll: {roll_value}), describe an interesting but negative outcome that reflects the character's personality and the nature of the action, including explicit details if appropriate.",
	"skill_check_description": "Use the character's relevant abilities to determine action outcomes.",
	"action_consequences":     "Actions should have meaningful consequences in the narrative world.",

	// 地点
	"location_description": "The character is in {location}, which is a place that reflects their personality and lifestyle.",
	"location_generation":  "Create a simple location name that would be appropriate for this character based on their personality, backstory, and the current context.",
}

// DefaultTemplates 返回默认模板集的副本
func DefaultTemplates() map[string]string {
	out := make(map[string]string, len(defaultTemplates))
	for k, v := range defaultTemplates {
		out[k] = v
	}
	return out
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// FormatTemplate 替换 vars 中存在的 {name} 占位符，其余花括号文本原样保留
func FormatTemplate(tpl string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}

// TemplateService 管理持久化的提示词模板
type TemplateService struct {
	store storage.Store
}

// NewTemplateService 创建模板服务
func NewTemplateService(store storage.Store) *TemplateService {
	return &TemplateService{store: store}
}

// EnsureDefaults 模板文件不存在时写入默认模板
func (s *TemplateService) EnsureDefaults() error {
	if s.store.Exists(config.TemplatesDir, templateDocID) {
		return nil
	}
	return s.Reset()
}

// Get 读取持久化的模板集，不存在时先写入默认模板
func (s *TemplateService) Get() (map[string]string, error) {
	templates := map[string]string{}
	err := s.store.Get(config.TemplatesDir, templateDocID, &templates)
	if errors.Is(err, storage.ErrNotFound) {
		if err := s.Reset(); err != nil {
			return nil, err
		}
		return DefaultTemplates(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取模板失败: %w", err)
	}
	return templates, nil
}

// Update 整体覆盖模板集
func (s *TemplateService) Update(templates map[string]string) error {
	if templates == nil {
		templates = map[string]string{}
	}
	if err := s.store.Put(config.TemplatesDir, templateDocID, templates); err != nil {
		return fmt.Errorf("保存模板失败: %w", err)
	}
	return nil
}

// Reset 恢复默认模板
func (s *TemplateService) Reset() error {
	return s.Update(DefaultTemplates())
}
