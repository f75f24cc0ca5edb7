// internal/api/handlers.go
package api

import (
	"github.com/Corphon/PersonaChat/internal/di"
	"github.com/Corphon/PersonaChat/internal/services"
	"github.com/gin-gonic/gin"
)

// Handler 处理API请求
type Handler struct {
	Characters *services.CharacterService
	Memory     *services.MemoryService
	Chats      *services.ChatService
	Scenarios  *services.ScenarioService
	Templates  *services.TemplateService
	LLM        *services.LLMService
	Narrator   *services.SceneNarrator
	Generation *services.GenerationService
	Export     *services.ExportService
	Hub        *ChatHub
	Response   *ResponseHelper
}

// NewHandlerFromContainer 从容器取出全部服务。任何服务缺失都返回错误
func NewHandlerFromContainer(container *di.Container) (*Handler, error) {
	h := &Handler{Response: NewResponseHelper()}
	var err error

	if h.Characters, err = di.Resolve[*services.CharacterService](container, di.CharacterService); err != nil {
		return nil, err
	}
	if h.Memory, err = di.Resolve[*services.MemoryService](container, di.MemoryService); err != nil {
		return nil, err
	}
	if h.Chats, err = di.Resolve[*services.ChatService](container, di.ChatService); err != nil {
		return nil, err
	}
	if h.Scenarios, err = di.Resolve[*services.ScenarioService](container, di.ScenarioService); err != nil {
		return nil, err
	}
	if h.Templates, err = di.Resolve[*services.TemplateService](container, di.TemplateService); err != nil {
		return nil, err
	}
	if h.LLM, err = di.Resolve[*services.LLMService](container, di.LLMService); err != nil {
		return nil, err
	}
	if h.Narrator, err = di.Resolve[*services.SceneNarrator](container, di.NarratorService); err != nil {
		return nil, err
	}
	if h.Generation, err = di.Resolve[*services.GenerationService](container, di.GenerateService); err != nil {
		return nil, err
	}
	if h.Export, err = di.Resolve[*services.ExportService](container, di.ExportService); err != nil {
		return nil, err
	}
	if h.Hub, err = di.Resolve[*ChatHub](container, di.ChatHub); err != nil {
		return nil, err
	}
	return h, nil
}

// bindJSON 解析请求体，失败时直接写出400
func (h *Handler) bindJSON(c *gin.Context, target interface{}) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return false
	}
	return true
}
