// internal/api/router.go
package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置HTTP路由
func SetupRouter(handler *Handler, debugMode bool) *gin.Engine {
	if !debugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(corsMiddleware())
	r.Use(metricsMiddleware())

	// 对话轮次推送
	r.GET("/ws/chats/:id", handler.ChatFeed)

	api := r.Group("/api")
	{
		api.GET("/health", handler.Health)

		// ===============================
		// 角色与记忆
		// ===============================
		characters := api.Group("/characters")
		{
			characters.GET("", handler.ListCharacters)
			characters.POST("", handler.CreateCharacter)
			characters.GET("/:id", handler.GetCharacter)
			characters.PUT("/:id", handler.UpdateCharacter)
			characters.DELETE("/:id", handler.DeleteCharacter)

			characters.GET("/:id/memory", handler.GetCharacterMemory)
			characters.POST("/:id/memory", handler.AddCharacterMemory)
			characters.POST("/:id/memory/summarize", handler.SummarizeCharacterMemory)
		}

		// ===============================
		// 对话实例
		// ===============================
		chats := api.Group("/chats")
		{
			chats.GET("", handler.ListChats)
			chats.POST("", handler.CreateChat)
			chats.GET("/:id", handler.GetChat)
			chats.PUT("/:id", handler.UpdateChat)
			chats.DELETE("/:id", handler.DeleteChat)
			chats.GET("/:id/export", handler.ExportChat)
		}

		api.POST("/chat/:id", handler.SendMessage)
		api.GET("/chat/history/:id", handler.GetChatHistory)

		// ===============================
		// 场景设定
		// ===============================
		scenarios := api.Group("/scenarios")
		{
			scenarios.GET("", handler.ListScenarios)
			scenarios.POST("", handler.CreateScenario)
			scenarios.GET("/:id", handler.GetScenario)
			scenarios.PUT("/:id", handler.UpdateScenario)
			scenarios.DELETE("/:id", handler.DeleteScenario)
		}

		// ===============================
		// 提示词模板
		// ===============================
		prompts := api.Group("/prompts")
		{
			prompts.GET("", handler.GetPrompts)
			prompts.PUT("", handler.UpdatePrompts)
			prompts.GET("/default", handler.GetDefaultPrompts)
			prompts.POST("/reset", handler.ResetPrompts)
		}

		// ===============================
		// 生成接口
		// ===============================
		api.POST("/generate-character", handler.GenerateCharacter)
		api.POST("/generate-field", handler.GenerateField)
		api.POST("/generate-text", handler.GenerateText)
		api.POST("/generate-json", handler.GenerateJSON)
		api.POST("/generate-scenario", handler.GenerateScenario)
		api.POST("/generate-scenario-from-prompt", handler.GenerateScenarioFromPrompt)
		api.POST("/generate-field-content", handler.GenerateFieldContent)
		api.POST("/generate-entities", handler.GenerateEntities)
		api.POST("/generate-location", handler.GenerateLocation)

		// ===============================
		// 模型与诊断
		// ===============================
		api.GET("/models", handler.GetModels)
		api.GET("/config", handler.GetConfig)
		api.PUT("/config/llm", handler.UpdateLLMConfig)
		api.POST("/config/test-connection", handler.TestConnection)
		api.GET("/diagnostic", handler.GetDiagnostic)
		api.GET("/metrics", handler.GetMetrics)
		api.GET("/ws/status", handler.GetFeedStatus)
	}

	return r
}
