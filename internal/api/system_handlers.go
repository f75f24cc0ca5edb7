// internal/api/system_handlers.go
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Corphon/PersonaChat/internal/config"
	"github.com/Corphon/PersonaChat/internal/llm"
	"github.com/Corphon/PersonaChat/internal/utils"
	"github.com/gin-gonic/gin"
)

// 未指定模型时用于连接测试的模型
const defaultTestModel = "openai/gpt-3.5-turbo"

// GetModels 返回可选模型列表。远程获取失败时仍返回默认列表
func (h *Handler) GetModels(c *gin.Context) {
	models, err := h.LLM.ListModels(c.Request.Context())
	if err != nil {
		h.Response.Success(c, gin.H{"models": models}, "Error fetching models: "+err.Error())
		return
	}
	h.Response.Success(c, gin.H{"models": models})
}

// GetConfig 返回公开配置，不含任何密钥
func (h *Handler) GetConfig(c *gin.Context) {
	models, _ := h.LLM.ListModels(c.Request.Context())
	ids := make([]string, 0, len(models))
	for _, model := range models {
		ids = append(ids, model.ID)
	}

	h.Response.Success(c, gin.H{
		"defaultModel":    h.LLM.GetDefaultModel(),
		"availableModels": ids,
	})
}

// TestConnection 用请求中的密钥或本地地址测试模型连接
func (h *Handler) TestConnection(c *gin.Context) {
	var req struct {
		APIKey        string `json:"apiKey"`
		Model         string `json:"model"`
		LocalModelURL string `json:"localModelUrl"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	if req.Model == "" {
		req.Model = defaultTestModel
	}
	if req.Model != config.LocalModelName && req.APIKey == "" {
		h.Response.BadRequest(c, "API key is required")
		return
	}

	if err := h.LLM.TestConnection(c.Request.Context(), req.APIKey, req.Model, req.LocalModelURL); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorConnectionFailed, err.Error())
		return
	}

	if req.Model == config.LocalModelName {
		h.Response.Success(c, nil, "Successfully connected to local model")
		return
	}
	h.Response.Success(c, nil, "API key is valid")
}

// UpdateLLMConfig 切换模型提供者并保存设置
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req struct {
		Provider string            `json:"provider" binding:"required"`
		Config   map[string]string `json:"config"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	if !providerRegistered(req.Provider) {
		h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid, "Unsupported provider: "+req.Provider)
		return
	}

	updated, err := config.UpdateLLMConfig(req.Provider, req.Config)
	if err != nil {
		h.Response.InternalError(c, "Failed to save configuration", err.Error())
		return
	}
	if err := h.LLM.UpdateProvider(updated.LLMProvider, updated.LLMConfig); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid, "Configuration saved but provider failed to start", err.Error())
		return
	}

	utils.GetLogger().Info("LLM配置已更新", map[string]interface{}{
		"provider":      updated.LLMProvider,
		"default_model": updated.DefaultModel(),
	})
	h.Response.Success(c, gin.H{
		"provider":         updated.LLMProvider,
		"default_model":    updated.DefaultModel(),
		"ready_state":      h.LLM.GetReadyState(),
		"supported_models": llm.GetSupportedModelsForProvider(updated.LLMProvider),
	}, "LLM configuration updated")
}

// providerRegistered 只接受已注册的远程提供商
func providerRegistered(name string) bool {
	if !config.IsRemoteProvider(name) {
		return false
	}
	for _, provider := range llm.ListProviders() {
		if provider == name {
			return true
		}
	}
	return false
}

// GetDiagnostic 返回诊断信息，只包含密钥长度
func (h *Handler) GetDiagnostic(c *gin.Context) {
	cfg := config.GetCurrentConfig()

	apiKeyStatus := "Not set"
	if n := h.LLM.APIKeyLength(); n > 0 {
		apiKeyStatus = fmt.Sprintf("Set (%d chars)", n)
	}

	upstreamStatus, upstreamMessage := h.LLM.KeyStatus(c.Request.Context())

	charactersStatus := ""
	if count, err := h.Characters.Count(); err != nil {
		charactersStatus = "Error: " + err.Error()
	} else {
		charactersStatus = fmt.Sprintf("Found %d characters", count)
	}

	h.Response.Success(c, gin.H{
		"app_status": "Running",
		"config": gin.H{
			"api_key":         apiKeyStatus,
			"provider":        h.LLM.GetProviderName(),
			"default_model":   h.LLM.GetDefaultModel(),
			"ready_state":     h.LLM.GetReadyState(),
			"data_dir":        cfg.DataDir,
			"storage_backend": cfg.StorageBackend,
			"debug_mode":      cfg.DebugMode,
		},
		"openrouter": gin.H{
			"status":  upstreamStatus,
			"message": upstreamMessage,
		},
		"characters": gin.H{
			"status": charactersStatus,
		},
		"feed":        h.Hub.GetStatus(),
		"metrics":     utils.GetMetricsCollector().GetMetrics(),
		"server_time": time.Now().Format(time.RFC3339),
	})
}

// GetMetrics 返回进程内指标快照
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, utils.GetMetricsCollector().GetMetrics())
}

// Health 存活检查
func (h *Handler) Health(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status":    "ok",
		"llm_ready": h.LLM.IsReady(),
	})
}
