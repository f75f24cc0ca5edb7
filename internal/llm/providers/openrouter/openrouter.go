// internal/llm/providers/openrouter/openrouter.go
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Corphon/PersonaChat/internal/llm"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// DefaultModels 无法访问 OpenRouter 时展示的模型
var DefaultModels = []llm.ModelInfo{
	{ID: "openai/gpt-3.5-turbo", Name: "GPT-3.5 Turbo"},
	{ID: "openai/gpt-4", Name: "GPT-4"},
	{ID: "anthropic/claude-3-opus", Name: "Claude 3 Opus"},
	{ID: "anthropic/claude-3-sonnet", Name: "Claude 3 Sonnet"},
	{ID: "anthropic/claude-3-haiku", Name: "Claude 3 Haiku"},
}

func init() {
	llm.Register("openrouter", func() llm.Provider {
		recommended := make([]string, 0, len(DefaultModels))
		for _, m := range DefaultModels {
			recommended = append(recommended, m.ID)
		}
		return &Provider{
			recommendedModels: recommended,
			baseURL:           defaultBaseURL,
		}
	})
}

// New 创建不带密钥的提供者，只用于 TestKey
func New(baseURL, appName, httpReferer string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{},
		appName:     appName,
		httpReferer: httpReferer,
	}
}

type Provider struct {
	apiKey            string
	baseURL           string
	client            *http.Client
	defaultModel      string
	recommendedModels []string
	availableModels   []string
	httpReferer       string // 请求来源
	appName           string // 应用名称
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("OpenRouter API密钥未提供")
	}

	p.apiKey = apiKey
	p.client = &http.Client{}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "openai/gpt-3.5-turbo"
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}

	if appName, exists := config["app_name"]; exists && appName != "" {
		p.appName = appName
	} else {
		p.appName = "AI Character Chat"
	}

	if httpReferer, exists := config["http_referer"]; exists && httpReferer != "" {
		p.httpReferer = httpReferer
	} else {
		p.httpReferer = "http://localhost:5000"
	}

	// 如果配置中包含自定义模型列表
	if customModels, exists := config["custom_models"]; exists && customModels != "" {
		var models []string
		if err := json.Unmarshal([]byte(customModels), &models); err == nil && len(models) > 0 {
			p.availableModels = models
		}
	}

	return nil
}

func (p *Provider) GetName() string {
	return "OpenRouter"
}

func (p *Provider) GetSupportedModels() []string {
	if len(p.availableModels) > 0 {
		return p.availableModels
	}
	return p.recommendedModels
}

// 设置自定义模型列表
func (p *Provider) SetCustomModels(models []string) {
	if len(models) > 0 {
		p.availableModels = models
	}
}

func (p *Provider) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("HTTP-Referer", p.httpReferer)
	req.Header.Set("X-Title", p.appName)
}

// ListModels 获取 OpenRouter 上的模型及其元数据
func (p *Provider) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	p.setHeaders(req, p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("获取模型列表失败(%d): %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data []struct {
			ID            string                 `json:"id"`
			Name          string                 `json:"name"`
			ContextLength int                    `json:"context_length"`
			Pricing       map[string]interface{} `json:"pricing"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	models := make([]llm.ModelInfo, 0, len(response.Data))
	for _, m := range response.Data {
		if m.ID == "" {
			continue
		}
		name := m.Name
		if name == "" {
			name = m.ID
		}
		models = append(models, llm.ModelInfo{
			ID:            m.ID,
			Name:          name,
			ContextLength: m.ContextLength,
			Pricing:       m.Pricing,
		})
	}
	return models, nil
}

// 尝试获取OpenRouter上可用的模型列表
func (p *Provider) FetchAvailableModels(ctx context.Context) error {
	if p.apiKey == "" {
		return errors.New("API密钥未设置，无法获取模型列表")
	}

	models, err := p.ListModels(ctx)
	if err != nil {
		return err
	}

	p.availableModels = make([]string, 0, len(models))
	for _, m := range models {
		p.availableModels = append(p.availableModels, m.ID)
	}
	return nil
}

// CheckKey 查询 /auth/key，返回额度信息
func (p *Provider) CheckKey(ctx context.Context) (*llm.KeyStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/key", nil)
	if err != nil {
		return nil, err
	}
	p.setHeaders(req, p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &llm.KeyStatus{
			Valid:   false,
			Message: fmt.Sprintf("Status %d: %s", resp.StatusCode, string(body)),
		}, nil
	}

	var info map[string]interface{}
	if err := json.Unmarshal(body, &info); err != nil {
		return &llm.KeyStatus{Valid: true, Message: "Could not parse credit information"}, nil
	}

	credit := info["credit"]
	if data, ok := info["data"].(map[string]interface{}); ok && credit == nil {
		credit = data["limit_remaining"]
	}
	if credit == nil {
		credit = "unknown"
	}

	return &llm.KeyStatus{
		Valid:   true,
		Message: fmt.Sprintf("Credits: %v", credit),
		Data:    info,
	}, nil
}

// TestKey 用给定的密钥和模型发送一条最短的消息
func (p *Provider) TestKey(ctx context.Context, apiKey, model string) error {
	body, err := json.Marshal(map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": "Hello"},
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	p.setHeaders(req, apiKey)

	client := p.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API key validation failed: %d", resp.StatusCode)
	}
	return nil
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := []map[string]string{
		{"role": "user", "content": req.Prompt},
	}
	if req.SystemPrompt != "" {
		messages = append([]map[string]string{
			{"role": "system", "content": req.SystemPrompt},
		}, messages...)
	}

	requestBody := map[string]interface{}{
		"model":       model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		requestBody["max_tokens"] = req.MaxTokens
	}
	for k, v := range req.ExtraParams {
		requestBody[k] = v
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	p.setHeaders(httpReq, p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("OpenRouter API错误(%d): %s", httpResp.StatusCode, errorDetail(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
		Model string `json:"model"` // OpenRouter返回实际使用的模型
	}

	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("解析OpenRouter响应失败: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("OpenRouter: %w", llm.ErrEmptyResponse)
	}

	return &llm.CompletionResponse{
		Text:         strings.TrimSpace(response.Choices[0].Message.Content),
		FinishReason: response.Choices[0].FinishReason,
		TokensUsed:   response.Usage.TotalTokens,
		PromptTokens: response.Usage.PromptTokens,
		OutputTokens: response.Usage.CompletionTokens,
		ModelName:    response.Model,
		ProviderName: p.GetName(),
	}, nil
}

// errorDetail 优先取 {"error":{"message":...}} 中的消息
func errorDetail(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return strings.TrimSpace(string(body))
}
