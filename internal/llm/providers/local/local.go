// internal/llm/providers/local/local.go
package local

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

const (
	defaultURL       = "http://localhost:11434/api/generate"
	defaultMaxTokens = 1000
)

func init() {
	llm.Register("local", func() llm.Provider {
		return &Provider{url: defaultURL}
	})
}

// Provider 本地模型端点，请求体 {prompt, max_tokens, temperature}，响应 {response}
type Provider struct {
	url    string
	client *http.Client
}

// New 直接创建指向 url 的本地提供者
func New(url string) *Provider {
	if url == "" {
		url = defaultURL
	}
	return &Provider{url: url, client: &http.Client{}}
}

func (p *Provider) Initialize(config map[string]string) error {
	if url, ok := config["url"]; ok && url != "" {
		p.url = url
	}
	if p.url == "" {
		return errors.New("本地模型地址未配置")
	}
	p.client = &http.Client{}
	return nil
}

func (p *Provider) GetName() string {
	return "Local"
}

func (p *Provider) GetSupportedModels() []string {
	return []string{"local"}
}

func (p *Provider) FetchAvailableModels(ctx context.Context) error {
	return nil
}

func (p *Provider) SetCustomModels(models []string) {}

// BuildPrompt 把系统提示词和用户消息拼成单个补全提示
func BuildPrompt(systemPrompt, userMessage string) string {
	return systemPrompt + "\n\n" + userMessage + "\n\nAssistant: "
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = BuildPrompt(req.SystemPrompt, req.Prompt)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload := map[string]interface{}{
		"prompt":      prompt,
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
	}
	for k, v := range req.ExtraParams {
		payload[k] = v
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := p.post(ctx, payload, &response); err != nil {
		return nil, err
	}

	return &llm.CompletionResponse{
		Text:         strings.TrimSpace(response.Response),
		ModelName:    "local",
		ProviderName: p.GetName(),
	}, nil
}

// Ping 发送最短的补全请求，验证端点可达
func (p *Provider) Ping(ctx context.Context) error {
	return p.post(ctx, map[string]interface{}{
		"prompt":     "Say hello",
		"max_tokens": 5,
	}, nil)
}

func (p *Provider) post(ctx context.Context, payload map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("本地模型请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("本地模型错误(%d): %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析本地模型响应失败: %w", err)
	}
	return nil
}
