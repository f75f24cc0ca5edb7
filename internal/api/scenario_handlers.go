// internal/api/scenario_handlers.go
package api

import (
	"github.com/Corphon/PersonaChat/internal/models"
	"github.com/gin-gonic/gin"
)

// ListScenarios 列出场景设定的元数据，最新创建的在前
func (h *Handler) ListScenarios(c *gin.Context) {
	scenarios, err := h.Scenarios.List()
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, scenarios)
}

// GetScenario 获取完整的场景设定
func (h *Handler) GetScenario(c *gin.Context) {
	scenario, err := h.Scenarios.Get(c.Param("id"))
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, scenario)
}

// CreateScenario 保存新的场景设定
func (h *Handler) CreateScenario(c *gin.Context) {
	var scenario models.Scenario
	if !h.bindJSON(c, &scenario) {
		return
	}

	created, err := h.Scenarios.Create(&scenario)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Created(c, created, "Scenario created")
}

// UpdateScenario 整体替换场景设定，保留创建时间
func (h *Handler) UpdateScenario(c *gin.Context) {
	var scenario models.Scenario
	if !h.bindJSON(c, &scenario) {
		return
	}

	updated, err := h.Scenarios.Update(c.Param("id"), &scenario)
	if err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, updated, "Scenario updated")
}

// DeleteScenario 删除场景设定
func (h *Handler) DeleteScenario(c *gin.Context) {
	if err := h.Scenarios.Delete(c.Param("id")); err != nil {
		h.Response.Fail(c, err)
		return
	}
	h.Response.Success(c, nil, "Scenario deleted")
}
