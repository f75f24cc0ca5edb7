// internal/services/json_extract.go
package services

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON 表示文本中找不到可解析的JSON
var ErrNoJSON = errors.New("no JSON object found in the response")

// ErrInvalidJSON 表示找到了疑似JSON的片段但无法解析
var ErrInvalidJSON = errors.New("failed to parse or extract valid JSON from the response")

// ParseJSONResponse 先整体解析，失败后取第一个 { 到最后一个 } 之间的内容再解析
func ParseJSONResponse(text string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return nil, ErrInvalidJSON
	}
	return v, nil
}

// topLevelObjects 扫描文本，按出现顺序返回所有括号平衡的顶层 {...} 片段。
// 字符串内部的括号和转义字符不参与计数。
func topLevelObjects(s string) []string {
	var objects []string

	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		char := s[i]

		if depth == 0 {
			if char == '{' {
				depth = 1
				start = i
				inString = false
				escaped = false
			}
			continue
		}

		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch char {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}

		switch char {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				objects = append(objects, s[start:i+1])
				start = -1
			}
		}
	}

	return objects
}
