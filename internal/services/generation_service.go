// internal/services/generation_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/Corphon/PersonaChat/internal/errors"
	"github.com/Corphon/PersonaChat/internal/utils"
)

const (
	characterGenerationTimeout = 30 * time.Second
	characterLocalMaxTokens    = 2000
	maxGeneratedNameLength     = 50

	defaultTextSystemPrompt     = "You are a helpful AI assistant."
	defaultJSONSystemPrompt     = "You are a helpful AI assistant. Respond with valid JSON only."
	worldBuildingSystemPrompt   = "You are a creative world-building expert."
	scenarioContentSystemPrompt = "You are a creative content generator for RPG scenarios."

	characterParseFailure = "Error parsing AI response. Please try again."
)

var (
	defaultIncludeFields = []string{"description", "personality"}
	worldRuleSplitRe     = regexp.MustCompile(`\d+\.\s*|\n+|\*\s*`)
	entityTypes          = map[string]bool{"location": true, "npc": true, "conflict": true}
)

// ParseFailure 模型输出不是合法JSON，保留原文返回给调用方
type ParseFailure struct {
	Message     string
	RawResponse string
}

func (e *ParseFailure) Error() string {
	return e.Message
}

// GenerationService 角色和场景内容的生成接口
type GenerationService struct {
	llm *LLMService
}

// NewGenerationService 创建生成服务
func NewGenerationService(llmService *LLMService) *GenerationService {
	return &GenerationService{llm: llmService}
}

// CharacterGenerationRequest POST /api/generate-character
type CharacterGenerationRequest struct {
	Prompt        string   `json:"prompt"`
	IncludeFields []string `json:"include_fields"`
	UseLocalModel bool     `json:"use_local_model"`
}

// 可选字段及其在系统提示词中的说明，按追加顺序排列
var optionalCharacterFields = []struct {
	key, hint string
}{
	{"speaking_style", "A description of how the character speaks, their accent, vocabulary, catch phrases, speech patterns, and verbal mannerisms"},
	{"appearance", "A detailed physical description including height, build, distinctive features, clothing style, and overall visual impression"},
	{"greeting", "A short greeting message that the character would say when first meeting someone, reflecting their personality and speaking style"},
}

// CharacterGenerationPrompt 根据需要的字段构造系统提示词
func CharacterGenerationPrompt(includeFields []string) string {
	var b strings.Builder
	b.WriteString(`You are a creative AI assistant specializing in character creation.
Generate a detailed character profile based on the user's prompt.
Your response should be in JSON format with the following structure:
{
    "description": "A detailed paragraph describing the character's background, appearance, and role",
    "personality": "A detailed description of the character's personality traits, habits, likes, dislikes, quirks, strengths, and weaknesses"`)

	for _, field := range optionalCharacterFields {
		if containsString(includeFields, field.key) {
			fmt.Fprintf(&b, ",\n    %q: %q", field.key, field.hint)
		}
	}

	b.WriteString("\n}\nBe creative, detailed, and consistent. Make the character feel like a well-rounded individual.")
	return b.String()
}

// GenerateCharacter 生成角色资料，返回的字段集合至少包含 include_fields
func (s *GenerationService) GenerateCharacter(ctx context.Context, req CharacterGenerationRequest) (map[string]interface{}, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, apperrors.NewValidationError("Prompt is required")
	}
	fields := req.IncludeFields
	if len(fields) == 0 {
		fields = defaultIncludeFields
	}

	ctx, cancel := context.WithTimeout(ctx, characterGenerationTimeout)
	defer cancel()

	systemPrompt := CharacterGenerationPrompt(fields)
	modelReq := ModelRequest{
		SystemPrompt: systemPrompt,
		UserMessage:  req.Prompt,
		Temperature:  0.7,
		UseLocal:     req.UseLocalModel,
	}
	if s.llm.UsesLocal(req.UseLocalModel) {
		modelReq.LocalPrompt = fmt.Sprintf("%s\n\nUser prompt: %s\n\nOutput JSON:", systemPrompt, req.Prompt)
		modelReq.MaxTokens = characterLocalMaxTokens
	}

	raw, err := s.llm.Complete(ctx, modelReq)
	if err != nil {
		return nil, err
	}
	return ParseGeneratedCharacter(raw, fields), nil
}

// ParseGeneratedCharacter 从模型输出中取出角色字段。
// 优先解析第一个 { 到最后一个 } 之间的JSON，失败后按 "Field Name:" 标记切分，最后按段落分配
func ParseGeneratedCharacter(raw string, fields []string) map[string]interface{} {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")

	if start < 0 || end <= start {
		result := map[string]interface{}{
			"description": characterParseFailure,
			"personality": characterParseFailure,
		}
		fillMissingFields(result, fields)
		return result
	}

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &result); err == nil && result != nil {
		fillMissingFields(result, fields)
		return result
	}

	result = extractMarkedFields(raw, fields)
	if allEmpty(result) {
		paragraphs := strings.Split(raw, "\n\n")
		for i, field := range fields {
			if i < len(paragraphs) {
				result[field] = strings.TrimSpace(paragraphs[i])
			}
		}
	}
	return result
}

func extractMarkedFields(raw string, fields []string) map[string]interface{} {
	markers := make(map[string]*regexp.Regexp, len(fields))
	for _, field := range fields {
		markers[field] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(fieldMarker(field)))
	}

	result := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		loc := markers[field].FindStringIndex(raw)
		if loc == nil {
			result[field] = ""
			continue
		}

		contentStart := loc[1]
		contentEnd := len(raw)
		for _, next := range fields {
			if next == field {
				continue
			}
			if n := markers[next].FindStringIndex(raw[contentStart:]); n != nil && contentStart+n[0] < contentEnd {
				contentEnd = contentStart + n[0]
			}
		}
		result[field] = strings.TrimSpace(raw[contentStart:contentEnd])
	}
	return result
}

// fieldMarker speaking_style -> "Speaking Style:"
func fieldMarker(field string) string {
	words := strings.Fields(strings.ReplaceAll(field, "_", " "))
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ") + ":"
}

// capitalize 首字母大写，其余小写
func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}

func fillMissingFields(result map[string]interface{}, fields []string) {
	for _, field := range fields {
		if _, ok := result[field]; !ok {
			result[field] = ""
		}
	}
}

func allEmpty(result map[string]interface{}) bool {
	for _, v := range result {
		if s, ok := v.(string); !ok || s != "" {
			return false
		}
	}
	return true
}

// FieldGenerationRequest POST /api/generate-field
type FieldGenerationRequest struct {
	Prompt        string `json:"prompt"`
	FieldType     string `json:"field_type"`
	UseLocalModel bool   `json:"use_local_model"`
}

var fieldSystemPrompts = map[string]string{
	"name":           "You are a creative writer specializing in character names. Generate a single name appropriate for the description. Respond with just the name, no explanation.",
	"description":    "You are a creative writer specializing in character backgrounds. Create a rich, detailed character description based on the prompt. No meta-commentary.",
	"greeting":       "You are a creative writer specializing in character dialogue. Create a greeting message that this character would say when first meeting someone. Make it match their personality. First person perspective only.",
	"appearance":     "You are a creative writer specializing in character descriptions. Create a detailed physical description of a character based on the prompt, including their clothing and distinctive features. No meta-commentary.",
	"personality":    "You are a creative writer specializing in character development. Create a detailed personality description based on the prompt, including traits, habits, likes and dislikes. No meta-commentary.",
	"speaking-style": "You are a creative writer specializing in dialogue. Describe in detail how this character speaks, including any speech patterns, accents, or phrases they commonly use. No meta-commentary.",
}

var fieldUserPrompts = map[string]string{
	"name":           "Generate a character name based on this description: %s",
	"description":    "Write a rich character background and description based on: %s",
	"greeting":       "Create a greeting message that this character would say when first meeting someone. Character info: %s",
	"appearance":     "Describe the physical appearance of a character based on: %s",
	"personality":    "Create a detailed personality description for a character based on: %s",
	"speaking-style": "Describe in detail how this character speaks based on: %s",
}

// FieldPrompts 返回单个角色字段的系统提示词和用户提示词
func FieldPrompts(fieldType, prompt string) (string, string) {
	system, ok := fieldSystemPrompts[fieldType]
	if !ok {
		system = "You are a creative writer. Generate content based on the prompt."
	}
	user := prompt
	if format, ok := fieldUserPrompts[fieldType]; ok {
		user = fmt.Sprintf(format, prompt)
	}
	return system, user
}

// GenerateField 生成单个角色字段
func (s *GenerationService) GenerateField(ctx context.Context, req FieldGenerationRequest) (string, error) {
	if req.Prompt == "" {
		return "", apperrors.NewValidationError("Prompt is required")
	}
	if req.FieldType == "" {
		return "", apperrors.NewValidationError("Field type is required")
	}

	system, user := FieldPrompts(req.FieldType, req.Prompt)
	content, err := s.llm.Complete(ctx, ModelRequest{
		SystemPrompt: system,
		UserMessage:  user,
		Temperature:  0.7,
		UseLocal:     req.UseLocalModel,
	})
	if err != nil {
		return "", err
	}

	if req.FieldType == "name" {
		content = CleanGeneratedName(content)
	}
	return content, nil
}

// CleanGeneratedName 去掉引号，最长50个字符
func CleanGeneratedName(name string) string {
	name = strings.TrimSpace(strings.Trim(strings.TrimSpace(name), `"'`))
	if runes := []rune(name); len(runes) > maxGeneratedNameLength {
		name = string(runes[:maxGeneratedNameLength])
	}
	return name
}

// TextGenerationRequest generate-text 和 generate-json 的请求体
type TextGenerationRequest struct {
	Prompt       string   `json:"prompt"`
	SystemPrompt *string  `json:"system_prompt"`
	Temperature  *float32 `json:"temperature"`
	MaxTokens    *int     `json:"max_tokens"`
}

func (r TextGenerationRequest) modelRequest(defaultSystem string) ModelRequest {
	req := ModelRequest{
		SystemPrompt: defaultSystem,
		UserMessage:  r.Prompt,
		Temperature:  0.7,
	}
	if r.SystemPrompt != nil {
		req.SystemPrompt = *r.SystemPrompt
	}
	if r.Temperature != nil {
		req.Temperature = *r.Temperature
	}
	if r.MaxTokens != nil {
		req.MaxTokens = *r.MaxTokens
	}
	return req
}

// GenerateText 通用文本生成
func (s *GenerationService) GenerateText(ctx context.Context, req TextGenerationRequest) (string, error) {
	if req.Prompt == "" {
		return "", apperrors.NewValidationError("Prompt is required")
	}
	return s.llm.Complete(ctx, req.modelRequest(defaultTextSystemPrompt))
}

// GenerateJSON 生成结构化数据。输出无法解析时返回 *ParseFailure
func (s *GenerationService) GenerateJSON(ctx context.Context, req TextGenerationRequest) (interface{}, error) {
	if req.Prompt == "" {
		return nil, apperrors.NewValidationError("Prompt is required")
	}
	if !strings.HasSuffix(strings.ToLower(req.Prompt), "json") {
		req.Prompt += " Respond with valid JSON only."
	}

	raw, err := s.llm.Complete(ctx, req.modelRequest(defaultJSONSystemPrompt))
	if err != nil {
		return nil, err
	}
	return parseOrFail(raw, "Failed to parse AI response as JSON")
}

func parseOrFail(raw, prefix string) (interface{}, error) {
	value, err := ParseJSONResponse(raw)
	if err != nil {
		utils.GetLogger().Warn("模型输出不是合法JSON", map[string]interface{}{
			"error":  err.Error(),
			"length": len(raw),
		})
		return nil, &ParseFailure{
			Message:     fmt.Sprintf("%s: %v", prefix, err),
			RawResponse: raw,
		}
	}
	return value, nil
}

// ScenarioGenerationRequest POST /api/generate-scenario
type ScenarioGenerationRequest struct {
	Genre     string `json:"genre"`
	Theme     string `json:"theme"`
	Setting   string `json:"setting"`
	WorldSize string `json:"world_size"`
}

const scenarioOutputFormat = `
Please structure your response as a JSON object with the following fields:
- title: A catchy title for the scenario
- description: A 2-3 sentence overview of the scenario
- world_size: The size of the world you specified
- starting_location: A detailed description of where the player starts
- world_rules: 3-5 important rules or mechanics of this world
- locations: Array of location objects (each with name, description)
- npcs: Array of NPC objects (each with name, description, motivation)

Your response should ONLY include the JSON object with no additional commentary.`

var worldSizeGuidance = map[string]string{
	"small": `For a small world:
- Create a focused, contained environment (like a village, small town, or single dungeon)
- Include 2-3 key locations
- Include 2-3 important NPCs
- Create a simple, straightforward plot
`,
	"medium": `For a medium world:
- Create a moderately sized environment (like a small city, region, or several connected areas)
- Include 3-4 key locations
- Include 3-4 important NPCs
- Create a plot with some complexity and a few branches
`,
	"large": `For a large world:
- Create a vast, open world with multiple regions or areas
- Include 4-5 key locations across different regions
- Include 4-5 important NPCs with interconnected relationships
- Create a complex plot with multiple potential paths or storylines
`,
}

// ScenarioPrompt 构造场景生成提示词，未知的世界规模按 medium 处理
func ScenarioPrompt(req ScenarioGenerationRequest) string {
	size := orDefault(req.WorldSize, "medium")

	var b strings.Builder
	fmt.Fprintf(&b, `Create a detailed scenario for an AI-driven RPG with the following parameters:

Genre: %s
Theme: %s
Setting: %s
World Size: %s

`,
		orDefault(req.Genre, "Any suitable genre"),
		orDefault(req.Theme, "Any suitable theme"),
		orDefault(req.Setting, "Any interesting setting"),
		size)

	guidance, ok := worldSizeGuidance[size]
	if !ok {
		guidance = worldSizeGuidance["medium"]
	}
	b.WriteString(guidance)
	b.WriteString(scenarioOutputFormat)
	return b.String()
}

// GenerateScenario 按体裁、主题和规模生成完整场景
func (s *GenerationService) GenerateScenario(ctx context.Context, req ScenarioGenerationRequest) (interface{}, error) {
	raw, err := s.llm.Complete(ctx, ModelRequest{
		SystemPrompt: worldBuildingSystemPrompt,
		UserMessage:  ScenarioPrompt(req),
		Temperature:  0.8,
	})
	if err != nil {
		return nil, err
	}
	return parseOrFail(raw, "Failed to parse AI response")
}

// ScenarioFromPromptRequest POST /api/generate-scenario-from-prompt
type ScenarioFromPromptRequest struct {
	PrimaryPrompt string `json:"primary_prompt"`
	WorldSize     string `json:"world_size"`
}

// ScenarioFromPromptPrompt 由一句主提示扩展场景
func ScenarioFromPromptPrompt(primary, worldSize string) string {
	size := orDefault(worldSize, "medium")
	return fmt.Sprintf(`Based on the following primary prompt, create a detailed scenario for an AI-driven RPG:

Primary Prompt: "%s"

World Size: %s

Please structure your response as a JSON object with the following fields:
- title: A catchy title for the scenario
- description: A 2-3 sentence overview of the scenario
- world_size: The size of the world (%s)
- starting_location: A detailed description of where the player starts
- world_rules: 3-5 important rules or mechanics of this world
- locations: Array of 2-5 important locations (each with name, description)
- npcs: Array of 2-5 important NPCs (each with name, description, motivation)

Your response should ONLY include the JSON object with no additional commentary.`, primary, size, size)
}

// GenerateScenarioFromPrompt 由主提示生成场景
func (s *GenerationService) GenerateScenarioFromPrompt(ctx context.Context, req ScenarioFromPromptRequest) (interface{}, error) {
	if strings.TrimSpace(req.PrimaryPrompt) == "" {
		return nil, apperrors.NewValidationError("Primary prompt is required")
	}

	raw, err := s.llm.Complete(ctx, ModelRequest{
		SystemPrompt: worldBuildingSystemPrompt,
		UserMessage:  ScenarioFromPromptPrompt(req.PrimaryPrompt, req.WorldSize),
		Temperature:  0.8,
	})
	if err != nil {
		return nil, err
	}
	return parseOrFail(raw, "Failed to parse AI response")
}

// FieldContentRequest POST /api/generate-field-content
type FieldContentRequest struct {
	FieldName string                 `json:"field_name"`
	Context   map[string]interface{} `json:"context"`
}

var scenarioFieldInstructions = map[string]string{
	"title": `
Generate a catchy, evocative title for this scenario. The title should:
- Be concise (2-5 words)
- Capture the essence of the scenario
- Be memorable and intriguing

Return ONLY the title text with no additional commentary or explanation.`,
	"description": `
Generate a brief description of this scenario. The description should:
- Be 2-3 sentences long
- Provide an overview of the world and central conflict
- Entice players to explore the scenario further

Return ONLY the description text with no additional commentary or explanation.`,
	"starting_location": `
Generate a detailed description of the starting location for this scenario. The description should:
- Be 2-4 sentences long
- Establish the initial atmosphere
- Provide a clear sense of place
- Include sensory details (sights, sounds, smells)

Return ONLY the starting location description with no additional commentary or explanation.`,
	"world_rules": `
Generate 3-5 important rules or mechanics that define how this world works. These might include:
- Magic systems or technology limitations
- Social structures or taboos
- Physical laws that differ from our reality
- Economic or political systems

Format the response as a list of rules, with each rule being 1-2 sentences.
Return ONLY the world rules with no additional commentary or explanation.`,
	"history": `
Generate a brief history of this world/scenario. The history should:
- Be 3-5 paragraphs
- Outline key historical events that shaped the current situation
- Mention any important historical figures
- Explain how the current conflicts arose

Return ONLY the history text with no additional commentary or explanation.`,
}

func scenarioHeader(info map[string]interface{}) string {
	return fmt.Sprintf(`Based on the following scenario information:

Title: %s
Description: %s
World Size: %s
`,
		contextString(info, "title", "the scenario"),
		contextString(info, "description", ""),
		contextString(info, "world_size", "medium"))
}

// FieldContentPrompt 场景单个字段的生成提示词
func FieldContentPrompt(fieldName string, info map[string]interface{}) string {
	instructions, ok := scenarioFieldInstructions[fieldName]
	if !ok {
		instructions = fmt.Sprintf(`
Generate appropriate content for the '%s' field of this scenario.
The content should be detailed, creative, and fit well with the existing information.

Return ONLY the content with no additional commentary or explanation.`, fieldName)
	}
	return scenarioHeader(info) + instructions
}

// ProcessFieldContent 去掉外层引号；world_rules 整理为规则列表
func ProcessFieldContent(fieldName, raw string) interface{} {
	content := strings.TrimSpace(raw)
	if len(content) >= 2 && strings.HasPrefix(content, `"`) && strings.HasSuffix(content, `"`) {
		content = content[1 : len(content)-1]
	}
	if fieldName != "world_rules" {
		return content
	}

	if strings.HasPrefix(content, "[") {
		var list interface{}
		if err := json.Unmarshal([]byte(content), &list); err == nil {
			return list
		}
		return content
	}

	rules := []string{}
	for _, rule := range worldRuleSplitRe.Split(content, -1) {
		if rule = strings.TrimSpace(rule); rule != "" {
			rules = append(rules, rule)
		}
	}
	return rules
}

// GenerateFieldContent 生成场景的单个字段
func (s *GenerationService) GenerateFieldContent(ctx context.Context, req FieldContentRequest) (interface{}, error) {
	if req.FieldName == "" {
		return nil, apperrors.NewValidationError("Field name is required")
	}

	raw, err := s.llm.Complete(ctx, ModelRequest{
		SystemPrompt: scenarioContentSystemPrompt,
		UserMessage:  FieldContentPrompt(req.FieldName, req.Context),
		Temperature:  0.8,
	})
	if err != nil {
		return nil, err
	}
	return ProcessFieldContent(req.FieldName, raw), nil
}

// EntityGenerationRequest POST /api/generate-entities
type EntityGenerationRequest struct {
	EntityType         string                   `json:"entity_type"`
	Count              int                      `json:"count"`
	Context            map[string]interface{}   `json:"context"`
	ExistingEntities   []map[string]interface{} `json:"existing_entities"`
	Name               string                   `json:"name"`
	PrimaryDescription string                   `json:"primary_description"`
}

// Detailed 是否请求单个带名称和主描述的完整实体
func (r EntityGenerationRequest) Detailed() bool {
	return r.Count == 1 && r.Name != "" && r.PrimaryDescription != ""
}

type entityTemplate struct {
	label    string
	detailed string
	list     string
}

var entityTemplates = map[string]entityTemplate{
	"location": {
		label: "a location named",
		detailed: `Include the following information:
- name: "%[1]s"
- description: Expanded from "%[2]s" (2-3 sentences)
- points_of_interest: 2-3 interesting features or areas within this location
- inhabitants: Who or what can be found here
- secrets: 1-2 hidden aspects or secrets about this location
- connections: How this location connects to other areas or the overall narrative`,
		list: `Generate %d unique and interesting locations for this scenario.

For each location, include:
- name: A descriptive name
- description: 1-2 sentences describing the location
- type: The type of location (city, dungeon, forest, etc.)

Return the locations as a JSON array of objects containing these fields.`,
	},
	"npc": {
		label: "an NPC named",
		detailed: `Include the following information:
- name: "%[1]s"
- description: Expanded from "%[2]s" (2-3 sentences)
- personality: Key personality traits and behaviors
- motivation: What drives this character
- abilities: Special skills or powers
- role: Their role in the scenario/story`,
		list: `Generate %d unique and interesting NPCs for this scenario.

For each NPC, include:
- name: A name appropriate to the setting
- description: 1-2 sentences describing their appearance and demeanor
- role: Their role in the scenario (ally, antagonist, neutral, etc.)

Return the NPCs as a JSON array of objects containing these fields.`,
	},
	"conflict": {
		label: "a conflict titled",
		detailed: `Include the following information:
- name: "%[1]s"
- description: Expanded from "%[2]s" (2-3 sentences)
- stakes: What's at risk in this conflict
- parties: The main parties or factions involved
- resolution_options: 2-3 possible ways this conflict could be resolved
- complications: 1-2 factors that make this conflict more complex`,
		list: `Generate %d unique and interesting conflicts for this scenario.

For each conflict, include:
- name: A descriptive title for the conflict
- description: 1-2 sentences describing the nature of the conflict
- type: The type of conflict (personal, political, environmental, etc.)

Return the conflicts as a JSON array of objects containing these fields.`,
	},
}

// EntityPrompt 构造实体生成提示词，已有实体会列出以避免重复
func EntityPrompt(req EntityGenerationRequest) string {
	var b strings.Builder
	b.WriteString(scenarioHeader(req.Context))
	b.WriteString("\n")

	if len(req.ExistingEntities) > 0 {
		fmt.Fprintf(&b, "Existing %ss:\n", req.EntityType)
		for _, entity := range req.ExistingEntities {
			fmt.Fprintf(&b, "- %s: %s\n",
				contextString(entity, "name", "Unnamed"),
				contextString(entity, "description", ""))
		}
		b.WriteString("\n")
	}

	tpl := entityTemplates[req.EntityType]
	if req.Name != "" && req.PrimaryDescription != "" {
		fmt.Fprintf(&b, "Generate complete details for %s \"%s\" with the primary description: \"%s\"\n\n",
			tpl.label, req.Name, req.PrimaryDescription)
		fmt.Fprintf(&b, tpl.detailed, req.Name, req.PrimaryDescription)
		b.WriteString("\n\nReturn the information as a JSON object with these fields.")
	} else {
		fmt.Fprintf(&b, tpl.list, req.Count)
	}

	b.WriteString("\n\nYour response should ONLY include the JSON with no additional commentary.")
	return b.String()
}

// GenerateEntities 生成地点、NPC或冲突。单个完整实体返回对象，否则总是返回列表
func (s *GenerationService) GenerateEntities(ctx context.Context, req EntityGenerationRequest) (interface{}, error) {
	if req.EntityType == "" {
		return nil, apperrors.NewValidationError("Entity type is required")
	}
	if !entityTypes[req.EntityType] {
		return nil, apperrors.NewValidationError(fmt.Sprintf("Invalid entity type: %s", req.EntityType))
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	raw, err := s.llm.Complete(ctx, ModelRequest{
		SystemPrompt: scenarioContentSystemPrompt,
		UserMessage:  EntityPrompt(req),
		Temperature:  0.8,
	})
	if err != nil {
		return nil, err
	}

	value, err := parseOrFail(raw, "Failed to parse AI response")
	if err != nil {
		return nil, err
	}
	if req.Detailed() {
		return value, nil
	}
	if list, ok := value.([]interface{}); ok {
		return list, nil
	}
	return []interface{}{value}, nil
}

// contextString 读取请求上下文里的字符串字段，非字符串值按文本输出
func contextString(m map[string]interface{}, key, def string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
