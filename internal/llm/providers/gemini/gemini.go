// internal/llm/providers/gemini/gemini.go
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Corphon/PersonaChat/internal/llm"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-2.5-flash"

func init() {
	llm.Register("gemini", func() llm.Provider {
		return &Provider{
			supportedModels: []string{
				"gemini-2.5-flash",
				"gemini-2.5-pro",
				"gemini-2.0-flash",
			},
		}
	})
}

// Provider 通过 generative-ai-go 调用 Google Gemini
type Provider struct {
	client          *genai.Client
	defaultModel    string
	supportedModels []string
	availableModels []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey := config["api_key"]
	if apiKey == "" {
		return errors.New("Gemini API密钥未提供")
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint := config["base_url"]; endpoint != "" && !strings.Contains(endpoint, "openrouter.ai") {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("创建Gemini客户端失败: %w", err)
	}
	p.client = client

	p.defaultModel = defaultModel
	if model := config["default_model"]; model != "" && strings.HasPrefix(model, "gemini") {
		p.defaultModel = model
	}
	return nil
}

// Close 释放底层连接
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *Provider) GetName() string {
	return "Gemini"
}

func (p *Provider) GetSupportedModels() []string {
	if len(p.availableModels) > 0 {
		return p.availableModels
	}
	return p.supportedModels
}

func (p *Provider) SetCustomModels(models []string) {
	if len(models) > 0 {
		p.availableModels = models
	}
}

// ListModels 列出账号可用的 Gemini 模型
func (p *Provider) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	if p.client == nil {
		return nil, errors.New("Gemini客户端未初始化")
	}

	var models []llm.ModelInfo
	it := p.client.ListModels(ctx)
	for {
		info, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		id := strings.TrimPrefix(info.Name, "models/")
		name := info.DisplayName
		if name == "" {
			name = id
		}
		models = append(models, llm.ModelInfo{
			ID:            id,
			Name:          name,
			ContextLength: int(info.InputTokenLimit),
		})
	}
	return models, nil
}

func (p *Provider) FetchAvailableModels(ctx context.Context) error {
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

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.client == nil {
		return nil, errors.New("Gemini客户端未初始化")
	}

	modelName := req.Model
	if modelName == "" || !strings.HasPrefix(modelName, "gemini") {
		modelName = p.defaultModel
	}

	model := p.client.GenerativeModel(modelName)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("Gemini API错误: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("Gemini: %w", llm.ErrEmptyResponse)
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	out := &llm.CompletionResponse{
		Text:         strings.TrimSpace(text.String()),
		FinishReason: candidate.FinishReason.String(),
		ModelName:    modelName,
		ProviderName: p.GetName(),
	}
	if usage := resp.UsageMetadata; usage != nil {
		out.PromptTokens = int(usage.PromptTokenCount)
		out.OutputTokens = int(usage.CandidatesTokenCount)
		out.TokensUsed = int(usage.TotalTokenCount)
	}
	return out, nil
}
