// internal/api/generation_handlers.go
package api

import (
	"github.com/Corphon/PersonaChat/internal/services"
	"github.com/gin-gonic/gin"
)

// GenerateCharacter 根据描述生成角色资料
func (h *Handler) GenerateCharacter(c *gin.Context) {
	var req services.CharacterGenerationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	character, err := h.Generation.GenerateCharacter(c.Request.Context(), req)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, gin.H{"character": character})
}

// GenerateField 生成单个角色字段
func (h *Handler) GenerateField(c *gin.Context) {
	var req services.FieldGenerationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	content, err := h.Generation.GenerateField(c.Request.Context(), req)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, gin.H{
		"content":    content,
		"field_type": req.FieldType,
	})
}

// GenerateText 通用文本生成
func (h *Handler) GenerateText(c *gin.Context) {
	var req services.TextGenerationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	text, err := h.Generation.GenerateText(c.Request.Context(), req)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, gin.H{"text": text})
}

// GenerateJSON 生成结构化数据
func (h *Handler) GenerateJSON(c *gin.Context) {
	var req services.TextGenerationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	data, err := h.Generation.GenerateJSON(c.Request.Context(), req)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, data)
}

// GenerateScenario 按类型、主题和世界规模生成场景设定
func (h *Handler) GenerateScenario(c *gin.Context) {
	var req services.ScenarioGenerationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	scenario, err := h.Generation.GenerateScenario(c.Request.Context(), req)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, scenario)
}

// GenerateScenarioFromPrompt 从一段概念描述扩展出场景设定
func (h *Handler) GenerateScenarioFromPrompt(c *gin.Context) {
	var req services.ScenarioFromPromptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	scenario, err := h.Generation.GenerateScenarioFromPrompt(c.Request.Context(), req)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, scenario)
}

// GenerateFieldContent 生成场景设定的单个字段
func (h *Handler) GenerateFieldContent(c *gin.Context) {
	var req services.FieldContentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	content, err := h.Generation.GenerateFieldContent(c.Request.Context(), req)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, gin.H{"content": content})
}

// GenerateEntities 生成地点、NPC或冲突
func (h *Handler) GenerateEntities(c *gin.Context) {
	var req services.EntityGenerationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	entities, err := h.Generation.GenerateEntities(c.Request.Context(), req)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, entities)
}

// GenerateLocation 为角色生成一个地点名称。模型失败时返回默认地点
func (h *Handler) GenerateLocation(c *gin.Context) {
	var req struct {
		CharacterID   string `json:"character_id"`
		Prompt        string `json:"prompt"`
		UseLocalModel bool   `json:"use_local_model"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	if req.CharacterID == "" {
		h.Response.BadRequest(c, "Character ID is required")
		return
	}

	character, err := h.Characters.Get(req.CharacterID)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}

	location := h.Narrator.GenerateLocation(c.Request.Context(), character, req.Prompt, req.UseLocalModel)
	h.Response.Success(c, gin.H{"location": location})
}
