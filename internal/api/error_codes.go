// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"

	// 资源相关错误
	ErrorCharacterNotFound = "CHARACTER_NOT_FOUND"
	ErrorChatNotFound      = "CHAT_NOT_FOUND"
	ErrorScenarioNotFound  = "SCENARIO_NOT_FOUND"

	// 模型服务相关错误
	ErrorUpstreamFailed     = "UPSTREAM_ERROR"
	ErrorUpstreamTimeout    = "UPSTREAM_TIMEOUT"
	ErrorInvalidModelOutput = "INVALID_MODEL_OUTPUT"
	ErrorConnectionFailed   = "CONNECTION_FAILED"
	ErrorLLMConfigInvalid   = "LLM_CONFIG_INVALID"

	// 导出相关错误
	ErrorExportFailed = "EXPORT_FAILED"
)
