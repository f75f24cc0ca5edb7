// internal/api/prompt_handlers.go
package api

import (
	"github.com/Corphon/PersonaChat/internal/services"
	"github.com/gin-gonic/gin"
)

// GetPrompts 返回当前提示词模板
func (h *Handler) GetPrompts(c *gin.Context) {
	templates, err := h.Templates.Get()
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, templates)
}

// GetDefaultPrompts 返回内置默认模板
func (h *Handler) GetDefaultPrompts(c *gin.Context) {
	h.Response.Success(c, services.DefaultTemplates())
}

// UpdatePrompts 覆盖提示词模板
func (h *Handler) UpdatePrompts(c *gin.Context) {
	var templates map[string]string
	if !h.bindJSON(c, &templates) {
		return
	}

	if err := h.Templates.Update(templates); err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, nil, "Prompt templates updated successfully")
}

// ResetPrompts 恢复默认模板
func (h *Handler) ResetPrompts(c *gin.Context) {
	if err := h.Templates.Reset(); err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, nil, "Prompt templates reset to default")
}
