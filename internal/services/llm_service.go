// internal/services/llm_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Corphon/PersonaChat/internal/config"
	apperrors "github.com/Corphon/PersonaChat/internal/errors"
	"github.com/Corphon/PersonaChat/internal/llm"
	"github.com/Corphon/PersonaChat/internal/llm/providers/local"
	"github.com/Corphon/PersonaChat/internal/llm/providers/openrouter"
	"github.com/Corphon/PersonaChat/internal/utils"

	// 注册其余提供者
	_ "github.com/Corphon/PersonaChat/internal/llm/providers/gemini"
)

// 连接测试与诊断请求的超时
const probeTimeout = 5 * time.Second

// ErrLLMNotReady 远程提供者未配置
var ErrLLMNotReady = errors.New("llm service not ready")

// ModelRequest 一次模型调用
type ModelRequest struct {
	SystemPrompt string
	UserMessage  string
	Temperature  float32
	MaxTokens    int

	// UseLocal 强制走本地模型端点
	UseLocal bool
	// LocalPrompt 非空时作为本地端点的完整提示词，不再拼接系统提示
	LocalPrompt string
}

// LLMService 提供统一的大语言模型调用接口
type LLMService struct {
	providerMutex      sync.RWMutex
	provider           llm.Provider
	providerName       string
	local              llm.Provider
	isReady            bool
	readyState         string
	activeDefaultModel string
	llmConfig          map[string]string
}

// NewLLMService 按当前配置创建服务。远程提供者初始化失败时返回未就绪的服务
func NewLLMService(cfg *config.AppConfig) *LLMService {
	service := &LLMService{
		readyState: "Uninitialized",
		local:      local.New(cfg.LocalModelURL),
	}

	llmConfig := map[string]string{}
	for k, v := range cfg.LLMConfig {
		llmConfig[k] = v
	}
	service.llmConfig = llmConfig
	service.providerName = cfg.LLMProvider
	service.activeDefaultModel = llmConfig["default_model"]

	if cfg.LLMProvider == "" || llmConfig["api_key"] == "" {
		service.readyState = "API key not configured"
		return service
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, llmConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		utils.GetLogger().Warn("LLM提供者初始化失败", map[string]interface{}{
			"provider": cfg.LLMProvider,
			"error":    err.Error(),
		})
		return service
	}

	service.provider = provider
	service.isReady = true
	service.readyState = "Ready"
	return service
}

// NewLLMServiceWithProviders 直接注入提供者，便于测试
func NewLLMServiceWithProviders(remote, localProvider llm.Provider, defaultModel string) *LLMService {
	s := &LLMService{
		provider:           remote,
		providerName:       "custom",
		local:              localProvider,
		activeDefaultModel: defaultModel,
		llmConfig:          map[string]string{"default_model": defaultModel},
		readyState:         "API key not configured",
	}
	if remote != nil {
		s.isReady = true
		s.readyState = "Ready"
	}
	return s
}

// IsReady 返回远程提供者是否可用
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider != nil && s.isReady
}

// GetReadyState 返回服务就绪状态描述
func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// GetProviderName 返回远程提供者名称
func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// GetDefaultModel 返回默认模型，"local" 表示本地端点
func (s *LLMService) GetDefaultModel() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.activeDefaultModel
}

// APIKeyLength 返回远程密钥长度，不暴露密钥本身
func (s *LLMService) APIKeyLength() int {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return len(s.llmConfig["api_key"])
}

// UpdateProvider 更新LLM服务的提供商
func (s *LLMService) UpdateProvider(providerName string, cfg map[string]string) error {
	provider, err := llm.GetProvider(providerName, cfg)
	if err != nil {
		s.providerMutex.Lock()
		s.isReady = false
		s.readyState = fmt.Sprintf("Configuration failed: %v", err)
		s.providerMutex.Unlock()
		return err
	}

	s.providerMutex.Lock()
	old := s.provider
	s.provider = provider
	s.providerName = providerName
	s.activeDefaultModel = cfg["default_model"]
	s.llmConfig = cfg
	s.isReady = true
	s.readyState = "Ready"
	s.providerMutex.Unlock()

	if closer, ok := old.(io.Closer); ok {
		closer.Close()
	}
	return nil
}

// UsesLocal 判断本次调用是否走本地端点
func (s *LLMService) UsesLocal(useLocal bool) bool {
	return useLocal || s.GetDefaultModel() == config.LocalModelName
}

// Complete 发送一次模型调用，返回去除首尾空白的文本。
// 调用失败返回 upstream 类型的 AppError，错误信息中保留上游原文
func (s *LLMService) Complete(ctx context.Context, req ModelRequest) (string, error) {
	s.providerMutex.RLock()
	remote := s.provider
	localProvider := s.local
	model := s.activeDefaultModel
	s.providerMutex.RUnlock()

	useLocal := req.UseLocal || model == config.LocalModelName

	completion := llm.CompletionRequest{
		SystemPrompt: req.SystemPrompt,
		Prompt:       req.UserMessage,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	}

	var provider llm.Provider
	if useLocal {
		provider = localProvider
		if req.LocalPrompt != "" {
			completion.SystemPrompt = ""
			completion.Prompt = req.LocalPrompt
		}
	} else {
		provider = remote
		if model != config.LocalModelName {
			completion.Model = model
		}
	}

	if provider == nil {
		return "", apperrors.NewUpstreamError("模型调用失败",
			fmt.Errorf("%w: %s", ErrLLMNotReady, s.GetReadyState()))
	}

	start := time.Now()
	resp, err := provider.CompleteText(ctx, completion)
	tokens := 0
	if resp != nil {
		tokens = resp.TokensUsed
	}
	utils.GetMetricsCollector().RecordLLMRequest(provider.GetName(), tokens, time.Since(start), err)
	if err != nil {
		utils.GetLogger().Error("模型调用失败", map[string]interface{}{
			"provider": provider.GetName(),
			"local":    useLocal,
			"error":    err.Error(),
		})
		return "", apperrors.NewUpstreamError("模型调用失败", err)
	}

	utils.GetLogger().Debug("模型调用完成", map[string]interface{}{
		"provider":    provider.GetName(),
		"model":       resp.ModelName,
		"tokens_used": resp.TokensUsed,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return resp.Text, nil
}

// ListModels 返回可选模型，末尾总是附加本地模型。
// 远程列表获取失败时返回默认列表和错误
func (s *LLMService) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	s.providerMutex.RLock()
	provider := s.provider
	s.providerMutex.RUnlock()

	var (
		models []llm.ModelInfo
		err    error
	)

	lister, ok := provider.(llm.ModelLister)
	if provider == nil || !ok {
		models = append(models, openrouter.DefaultModels...)
	} else {
		models, err = lister.ListModels(ctx)
		if err != nil {
			utils.GetLogger().Warn("获取模型列表失败，使用默认列表", map[string]interface{}{"error": err.Error()})
			models = append([]llm.ModelInfo{}, openrouter.DefaultModels...)
		}
	}

	models = append(models, llm.ModelInfo{ID: config.LocalModelName, Name: "Local Model"})
	return models, err
}

// TestConnection 用给定密钥或本地地址做一次最短调用
func (s *LLMService) TestConnection(ctx context.Context, apiKey, model, localURL string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if model == config.LocalModelName {
		s.providerMutex.RLock()
		target := s.local
		s.providerMutex.RUnlock()
		if localURL != "" {
			target = local.New(localURL)
		}
		pinger, ok := target.(interface{ Ping(context.Context) error })
		if !ok {
			return errors.New("local model does not support connection tests")
		}
		if err := pinger.Ping(ctx); err != nil {
			return fmt.Errorf("Failed to connect to local model: %w", err)
		}
		return nil
	}

	s.providerMutex.RLock()
	cfg := s.llmConfig
	s.providerMutex.RUnlock()

	tester := openrouter.New(cfg["base_url"], cfg["app_name"], cfg["http_referer"])
	if err := tester.TestKey(ctx, apiKey, model); err != nil {
		return err
	}
	return nil
}

// KeyStatus 诊断用：检查远程密钥状态，返回 (status, message)
func (s *LLMService) KeyStatus(ctx context.Context) (string, string) {
	s.providerMutex.RLock()
	provider := s.provider
	s.providerMutex.RUnlock()

	if provider == nil {
		return "Unknown", ""
	}
	checker, ok := provider.(llm.KeyChecker)
	if !ok {
		return "Unknown", "provider does not report key status"
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	status, err := checker.CheckKey(ctx)
	if err != nil {
		return "Error", err.Error()
	}
	if !status.Valid {
		return "Error", status.Message
	}
	return "Connected", status.Message
}
