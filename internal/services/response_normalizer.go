// internal/services/response_normalizer.go
package services

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Corphon/PersonaChat/internal/models"
)

// extractStrategy 尝试从模型原文中取出带 text 键的对象
type extractStrategy func(raw string) (models.ResponseRecord, bool)

var (
	greedyObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)
	fencedJSONRe   = regexp.MustCompile("```json\\s*([\\s\\S]*?)\\s*```")
	fencedAnyRe    = regexp.MustCompile("```\\s*([\\s\\S]*?)\\s*```")
	textFirstRe    = regexp.MustCompile(`\{("text"|'text')[\s\S]*\}`)

	// 兜底阶段剥离的片段
	lazyObjectRe = regexp.MustCompile(`\{[\s\S]*?\}`)
	fenceBlockRe = regexp.MustCompile("```[\\s\\S]*?```")

	actionSpanRe = regexp.MustCompile(`\*(.*?)\*|\((.*?)\)`)
	locationRe   = regexp.MustCompile(`at (the|a) ([^.]*)`)
)

// 情绪关键词，按优先级排列，先命中者生效
var moodKeywords = []struct {
	re   *regexp.Regexp
	mood string
}{
	{regexp.MustCompile(`(?i)laugh|chuckle|grin|smile|happy|joy`), "happy"},
	{regexp.MustCompile(`(?i)frown|sigh|sad|upset|depress`), "sad"},
	{regexp.MustCompile(`(?i)angry|furious|mad|rage`), "angry"},
}

// normalizerStrategies 依次尝试，第一个成功的结果直接返回
var normalizerStrategies = []extractStrategy{
	wholeInputStrategy,
	patternStrategy(greedyObjectRe, 0),
	patternStrategy(fencedJSONRe, 1),
	patternStrategy(fencedAnyRe, 1),
	patternStrategy(textFirstRe, 0),
	balancedObjectStrategy,
}

// NormalizeResponse 把模型原文转换为六字段记录。对任意输入都返回完整记录，不会失败。
func NormalizeResponse(raw string) models.ResponseRecord {
	for _, strategy := range normalizerStrategies {
		if record, ok := strategy(raw); ok {
			return record
		}
	}
	return heuristicRecord(raw)
}

func wholeInputStrategy(raw string) (models.ResponseRecord, bool) {
	return recordFromJSON(raw, raw)
}

// patternStrategy 对正则的每个匹配（或指定分组）尝试解析
func patternStrategy(re *regexp.Regexp, group int) extractStrategy {
	return func(raw string) (models.ResponseRecord, bool) {
		for _, match := range re.FindAllStringSubmatch(raw, -1) {
			if group >= len(match) {
				continue
			}
			candidate := strings.TrimSpace(match[group])
			if !strings.HasPrefix(candidate, "{") {
				continue
			}
			if record, ok := recordFromJSON(candidate, raw); ok {
				return record, true
			}
		}
		return models.ResponseRecord{}, false
	}
}

// balancedObjectStrategy 处理回复中夹杂多个对象、贪婪匹配跨越了它们的情况
func balancedObjectStrategy(raw string) (models.ResponseRecord, bool) {
	for _, candidate := range topLevelObjects(raw) {
		if record, ok := recordFromJSON(candidate, raw); ok {
			return record, true
		}
	}
	return models.ResponseRecord{}, false
}

// recordFromJSON 解析 candidate，只有带 text 键的对象才算成功
func recordFromJSON(candidate, raw string) (models.ResponseRecord, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil || obj == nil {
		return models.ResponseRecord{}, false
	}
	if _, ok := obj["text"]; !ok {
		return models.ResponseRecord{}, false
	}

	record := models.DefaultRecord(raw)
	record.Text = coerceText(obj["text"], record.Text)
	record.Mood = coerceText(obj["mood"], record.Mood)
	record.OpinionOfUser = coerceText(obj["opinion_of_user"], record.OpinionOfUser)
	record.Action = coerceText(obj["action"], record.Action)
	record.Location = coerceText(obj["location"], record.Location)
	if value, ok := obj["emotions"]; ok {
		record.Emotions = models.ParseEmotions(value)
	}
	return record, true
}

// coerceText null 或缺失用默认值，字符串原样，其他值取其JSON文本
func coerceText(value json.RawMessage, def string) string {
	value = json.RawMessage(strings.TrimSpace(string(value)))
	if len(value) == 0 || string(value) == "null" {
		return def
	}

	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}

	var v interface{}
	if err := json.Unmarshal(value, &v); err != nil {
		return def
	}
	compact, err := json.Marshal(v)
	if err != nil {
		return def
	}
	return string(compact)
}

// heuristicRecord 没有可用对象时的兜底：剥离JSON与代码块后的剩余文本，再从原文推断动作、位置和情绪
func heuristicRecord(raw string) models.ResponseRecord {
	record := models.DefaultRecord(raw)

	cleaned := lazyObjectRe.ReplaceAllString(raw, "")
	cleaned = fenceBlockRe.ReplaceAllString(cleaned, "")
	if cleaned = strings.TrimSpace(cleaned); cleaned != "" {
		record.Text = cleaned
	}

	if m := actionSpanRe.FindStringSubmatch(raw); m != nil {
		action := m[1]
		if action == "" {
			action = m[2]
		}
		if action = strings.TrimSpace(action); action != "" {
			record.Action = action
		}
	}

	if m := locationRe.FindStringSubmatch(raw); m != nil {
		if location := strings.TrimSpace(m[2]); location != "" {
			record.Location = location
		}
	}

	for _, family := range moodKeywords {
		if family.re.MatchString(raw) {
			record.Mood = family.mood
			break
		}
	}

	return record
}

// UnwrapNestedText 如果 text 本身还是一个带 text 键的JSON对象，再拆一层。只拆一层。
func UnwrapNestedText(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return text
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return text
	}
	inner, ok := obj["text"]
	if !ok {
		return text
	}
	return coerceText(inner, "")
}

// FinalizeReply 对规范化结果做调用方的后处理：拆嵌套、空文本兜底
func FinalizeReply(record models.ResponseRecord) models.ResponseRecord {
	record.Text = UnwrapNestedText(record.Text)
	if strings.TrimSpace(record.Text) == "" {
		record.Text = models.FallbackReplyText
	}
	if record.Emotions == nil {
		record.Emotions = models.Emotions{}
	}
	return record
}
