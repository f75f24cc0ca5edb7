// internal/services/scene_narrator.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Corphon/PersonaChat/internal/models"
	"github.com/Corphon/PersonaChat/internal/utils"
)

const (
	// FallbackSceneDescription 旁白调用失败时使用
	FallbackSceneDescription = "The scene unfolds naturally as the conversation continues."
	// FallbackLocationName 地点生成失败时使用
	FallbackLocationName = "Nondescript Room"

	narrationMaxTokens = 1000
	locationMaxTokens  = 100
)

var (
	dotallObjectRe    = regexp.MustCompile(`(?s)(\{.*\})`)
	locationFieldRe   = regexp.MustCompile(`"location":\s*"([^"]+)"`)
	narrationSections = `
Write in third-person perspective, present tense. Focus on showing rather than telling.
Make the scene feel like a paragraph from a novel, with sensory details and emotional nuance.

DO NOT create new dialogue for the character; use exactly what they said.
DO NOT create dialogue for the user; only mention their presence and actions.
Format your response as a JSON object with a single field named 'scene_description'.
`
)

const locationSystemPrompt = `You are a location name generator for a roleplaying app.
Given a character description, generate a simple, appropriate location name where this character
might be found or would frequent. Keep it brief - 1-3 words only.

Your response should be a JSON object with a single field:
- "location": A short location name that clearly indicates where the character is

Examples:
- "location": "Dusty Library"
- "location": "Space Station"
- "location": "Medieval Tavern"
- "location": "Beachside Cafe"
`

// SceneNarrator 第二次模型调用，把规范化后的回复写成小说式场景描写
type SceneNarrator struct {
	llm *LLMService
}

// NewSceneNarrator 创建旁白服务
func NewSceneNarrator(llmService *LLMService) *SceneNarrator {
	return &SceneNarrator{llm: llmService}
}

// NarrationInput 旁白调用的全部输入
type NarrationInput struct {
	Character      *models.Character
	Record         models.ResponseRecord
	UserMessage    string
	IsPlayerAction bool
	ActionSuccess  bool
	UseLocal       bool
}

// NarrationPrompts 构造旁白的系统提示词和用户提示词，只依赖输入
func NarrationPrompts(in NarrationInput) (string, string) {
	name := in.Character.Name

	var system strings.Builder
	fmt.Fprintf(&system, `You are a skilled novelist writing a scene between the character %s and a user.
Your task is to create a vivid, engaging scene description that captures the interaction.

The scene should include:
- user action towards %s in visual details.
- Environmental details of the location
- The character's actions, expressions, and body language
- The mood and atmosphere of the scene
- The character's dialogue (which MUST be included word for word)
`, name, name)

	if in.IsPlayerAction {
		outcome := "failure"
		if in.ActionSuccess {
			outcome = "success"
		}
		fmt.Fprintf(&system, `- The user's action and its outcome (%s)
- How the environment and situation changes as a result of the action
- visually describe an action sequence with the user taking action
- how %s reacted, as the action is taking place.
- use vulgar wording and details if action is sexual
`, outcome, name)
	}
	system.WriteString(narrationSections)

	prompt := fmt.Sprintf(`
Character's name: %s
Character's description: %s
Character's personality: %s
Location: %s
Character's action: %s
Character's mood: %s
Character's emotions: %s

%s
Character's dialogue: "%s"

Create a novelist-style scene description that incorporates all these elements.
`,
		name,
		orDefault(in.Character.Description, "A mysterious individual"),
		orDefault(in.Character.Personality, "Enigmatic and thoughtful"),
		orDefault(in.Record.Location, models.DefaultResponseLocation),
		orDefault(in.Record.Action, models.DefaultResponseAction),
		orDefault(in.Record.Mood, models.DefaultMood),
		in.Record.Emotions.String(),
		userContext(in),
		in.Record.Text,
	)

	return system.String(), prompt
}

// userContext 普通消息引用原话，玩家行动合成一句结果描述
func userContext(in NarrationInput) string {
	if !in.IsPlayerAction {
		return fmt.Sprintf("User says: \"%s\"", in.UserMessage)
	}

	action, ok := models.ParsePlayerAction(in.UserMessage)
	if ok && action.Action != "" {
		if in.ActionSuccess {
			return fmt.Sprintf("Player attempts to %s and succeeds", action.Action)
		}
		return fmt.Sprintf("Player attempts to %s but fails", action.Action)
	}

	outcome := "Failure"
	if in.ActionSuccess {
		outcome = "Success"
	}
	return fmt.Sprintf("Player action: %s, %s", in.UserMessage, outcome)
}

// Narrate 生成场景描写。上游失败时返回固定的兜底句子，不返回错误
func (n *SceneNarrator) Narrate(ctx context.Context, in NarrationInput) string {
	system, prompt := NarrationPrompts(in)

	raw, err := n.llm.Complete(ctx, ModelRequest{
		SystemPrompt: system,
		UserMessage:  prompt,
		Temperature:  0.7,
		MaxTokens:    n.localMaxTokens(in.UseLocal, narrationMaxTokens),
		UseLocal:     in.UseLocal,
	})
	if err != nil {
		utils.GetLogger().Warn("生成场景描写失败", map[string]interface{}{
			"character_id": in.Character.ID,
			"error":        err.Error(),
		})
		return FallbackSceneDescription
	}

	return ExtractSceneDescription(raw)
}

// localMaxTokens 只有本地端点设置 max_tokens
func (n *SceneNarrator) localMaxTokens(useLocal bool, max int) int {
	if n.llm.UsesLocal(useLocal) {
		return max
	}
	return 0
}

// ExtractSceneDescription 取出带字符串 scene_description 的对象，全部失败时返回原文
func ExtractSceneDescription(raw string) string {
	if value, ok := extractStringField(raw, "scene_description"); ok {
		return value
	}
	return raw
}

// ExtractLocation 依次尝试JSON对象、"location" 字段正则和原文
func ExtractLocation(raw string) string {
	if value, ok := extractStringField(raw, "location"); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	if m := locationFieldRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		return trimmed
	}
	return FallbackLocationName
}

// extractStringField 在原文、跨度最大的对象、代码块和各个顶层对象中寻找字符串类型的 key
func extractStringField(raw, key string) (string, bool) {
	candidates := []string{raw}
	if m := dotallObjectRe.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, m[1])
	}
	for _, m := range fencedJSONRe.FindAllStringSubmatch(raw, -1) {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, topLevelObjects(raw)...)

	for _, candidate := range candidates {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &obj); err != nil {
			continue
		}
		if value, ok := obj[key].(string); ok {
			return value, true
		}
	}
	return "", false
}

// LocationPrompt 构造地点生成的用户提示词
func LocationPrompt(character *models.Character, desired string) string {
	prompt := fmt.Sprintf(`
Character Information:
- Name: %s
- Description: %s
- Personality: %s
- Category: %s
`,
		character.Name,
		orDefault(character.Description, "No description provided"),
		orDefault(character.Personality, "No personality provided"),
		orDefault(character.Category, models.DefaultCategory),
	)
	if desired != "" {
		prompt += "\nDesired location type: " + desired
	}
	return prompt
}

// GenerateLocation 为角色生成一个简短的地点名称，失败时返回 "Nondescript Room"
func (n *SceneNarrator) GenerateLocation(ctx context.Context, character *models.Character, desired string, useLocal bool) string {
	raw, err := n.llm.Complete(ctx, ModelRequest{
		SystemPrompt: locationSystemPrompt,
		UserMessage:  LocationPrompt(character, desired),
		Temperature:  0.7,
		MaxTokens:    n.localMaxTokens(useLocal, locationMaxTokens),
		UseLocal:     useLocal,
	})
	if err != nil {
		utils.GetLogger().Warn("生成地点失败", map[string]interface{}{
			"character_id": character.ID,
			"error":        err.Error(),
		})
		return FallbackLocationName
	}
	return ExtractLocation(raw)
}
