// internal/api/character_handlers.go
package api

import (
	"github.com/Corphon/PersonaChat/internal/models"
	"github.com/gin-gonic/gin"
)

// ListCharacters 列出所有角色
func (h *Handler) ListCharacters(c *gin.Context) {
	characters, err := h.Characters.List()
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, characters)
}

// GetCharacter 获取单个角色
func (h *Handler) GetCharacter(c *gin.Context) {
	character, err := h.Characters.Get(c.Param("id"))
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, character)
}

// CreateCharacter 创建角色
func (h *Handler) CreateCharacter(c *gin.Context) {
	var profile models.CharacterProfile
	if !h.bindJSON(c, &profile) {
		return
	}

	character, err := h.Characters.Create(profile)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Created(c, character, "Character created")
}

// UpdateCharacter 更新角色资料
func (h *Handler) UpdateCharacter(c *gin.Context) {
	var profile models.CharacterProfile
	if !h.bindJSON(c, &profile) {
		return
	}

	character, err := h.Characters.Update(c.Param("id"), profile)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, character, "Character updated")
}

// DeleteCharacter 删除角色及其记忆
func (h *Handler) DeleteCharacter(c *gin.Context) {
	if err := h.Characters.Delete(c.Param("id")); err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, nil, "Character deleted")
}

// GetCharacterMemory 读取角色记忆
func (h *Handler) GetCharacterMemory(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.Characters.Get(id); err != nil {
		h.Response.Fail(c, err)
		return
	}

	doc, err := h.Memory.Get(id)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, doc)
}

// AddCharacterMemory 追加一条长期记忆
func (h *Handler) AddCharacterMemory(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.Characters.Get(id); err != nil {
		h.Response.Fail(c, err)
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if !h.bindJSON(c, &req) {
		return
	}

	entry, err := h.Memory.AddEntry(id, req.Content)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Created(c, entry, "Memory added")
}

// SummarizeCharacterMemory 把较早的对话按天汇总为记忆
func (h *Handler) SummarizeCharacterMemory(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.Characters.Get(id); err != nil {
		h.Response.Fail(c, err)
		return
	}

	doc, summaries, err := h.Memory.Summarize(id)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, gin.H{
		"memory":    doc,
		"summaries": summaries,
	})
}
