// internal/api/chat_handlers.go
package api

import (
	"github.com/Corphon/PersonaChat/internal/models"
	"github.com/Corphon/PersonaChat/internal/utils"
	"github.com/gin-gonic/gin"
)

// ListChats 列出对话实例，最新更新的在前
func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.Chats.List()
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, chats)
}

// GetChat 获取单个对话实例
func (h *Handler) GetChat(c *gin.Context) {
	chat, err := h.Chats.Get(c.Param("id"))
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, chat)
}

// CreateChat 为角色创建新的对话实例
func (h *Handler) CreateChat(c *gin.Context) {
	var req models.ChatCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	chat, err := h.Chats.Create(req)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Created(c, chat, "Chat instance created")
}

// UpdateChat 修改标题、地点或绑定的场景
func (h *Handler) UpdateChat(c *gin.Context) {
	var update models.ChatUpdate
	if !h.bindJSON(c, &update) {
		return
	}

	chat, err := h.Chats.Update(c.Param("id"), update)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, chat, "Chat instance updated")
}

// DeleteChat 删除对话实例
func (h *Handler) DeleteChat(c *gin.Context) {
	if err := h.Chats.Delete(c.Param("id")); err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, nil, "Chat instance deleted")
}

// GetChatHistory 返回对话实例的全部轮次
func (h *Handler) GetChatHistory(c *gin.Context) {
	turns, err := h.Chats.History(c.Param("id"))
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, gin.H{"conversations": turns})
}

// SendMessage 处理一轮对话
func (h *Handler) SendMessage(c *gin.Context) {
	var req models.ChatTurnRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.Chats.Turn(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, result)
}

// ExportChat 导出对话记录，格式由 format 参数指定
func (h *Handler) ExportChat(c *gin.Context) {
	chatID := c.Param("id")
	result, err := h.Export.ExportChat(chatID, c.DefaultQuery("format", models.ExportJSON))
	if err != nil {
		h.Response.Fail(c, err)
		return
	}

	utils.GetLogger().Info("对话已导出", map[string]interface{}{
		"chat_id": chatID,
		"format":  result.Format,
		"size":    len(result.Content),
	})
	h.Response.ExportResponse(c, result)
}
