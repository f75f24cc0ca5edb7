// internal/api/response_helpers.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/Corphon/PersonaChat/internal/errors"
	"github.com/Corphon/PersonaChat/internal/models"
	"github.com/Corphon/PersonaChat/internal/services"
	"github.com/Corphon/PersonaChat/internal/utils"
	"github.com/gin-gonic/gin"
)

// APIResponse 统一的API响应结构
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError 错误信息
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct{}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	rh.write(c, http.StatusOK, data, message)
}

// Created 创建成功响应
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	if len(message) == 0 {
		message = []string{"资源创建成功"}
	}
	rh.write(c, http.StatusCreated, data, message)
}

func (rh *ResponseHelper) write(c *gin.Context, status int, data interface{}, message []string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(status, response)
}

// 形如 sk-or-v1-xxxx 或 Bearer xxxx 的密钥片段
var secretPattern = regexp.MustCompile(`(?i)(sk-[a-z0-9-]{8,}|bearer\s+[a-z0-9._-]{8,}|key=[a-z0-9._-]{8,})`)

// sanitizeErrorMessage 遮盖消息中疑似密钥的片段，其余原样保留
func sanitizeErrorMessage(message string) string {
	return secretPattern.ReplaceAllString(message, "[REDACTED]")
}

// Error 错误响应
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...interface{}) {
	apiError := &APIError{
		Code:    errorCode,
		Message: sanitizeErrorMessage(message),
	}

	if len(details) > 0 && details[0] != nil {
		if text, ok := details[0].(string); ok {
			apiError.Details = sanitizeErrorMessage(text)
		} else {
			apiError.Details = details[0]
		}
	}

	c.JSON(statusCode, &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	})
}

// Fail 按错误类型选择状态码和错误代码
func (rh *ResponseHelper) Fail(c *gin.Context, err error) {
	var parseFailure *services.ParseFailure
	if errors.As(err, &parseFailure) {
		rh.Error(c, http.StatusBadRequest, ErrorInvalidModelOutput, parseFailure.Message,
			gin.H{"raw_response": parseFailure.RawResponse})
		return
	}

	status := apperrors.HTTPStatus(err)
	message := apperrors.PublicMessage(err)
	code := ErrorInternalError
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		code = ErrorBadRequest
	case apperrors.ErrorTypeNotFound:
		code = rh.getResourceNotFoundCode(strings.TrimSuffix(message, " not found"))
	case apperrors.ErrorTypeUpstream:
		code = ErrorUpstreamFailed
	case apperrors.ErrorTypeTimeout:
		code = ErrorUpstreamTimeout
	}

	if status >= http.StatusInternalServerError {
		utils.GetLogger().Error("请求处理失败", map[string]interface{}{
			"path":       c.FullPath(),
			"request_id": rh.getRequestID(c),
			"error":      err.Error(),
		})
	}
	rh.Error(c, status, code, message)
}

// BadRequest 400错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...interface{}) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound 404错误响应
func (rh *ResponseHelper) NotFound(c *gin.Context, resource string, details ...interface{}) {
	rh.Error(c, http.StatusNotFound, rh.getResourceNotFoundCode(resource), resource+" not found", details...)
}

// InternalError 500错误响应
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...interface{}) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// FileResponse 文件下载响应
func (rh *ResponseHelper) FileResponse(c *gin.Context, content []byte, filename string, contentType string) {
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Length", fmt.Sprintf("%d", len(content)))
	c.Data(http.StatusOK, contentType, content)
}

// ExportResponse 导出响应。json 格式走统一结构，其余格式作为附件下载
func (rh *ResponseHelper) ExportResponse(c *gin.Context, result *models.ExportResult) {
	if result.Format == models.ExportJSON && c.Query("download") == "" {
		rh.Success(c, gin.H{
			"export":  result,
			"content": json.RawMessage(result.Content),
		}, "导出成功")
		return
	}

	filename := filepath.Base(result.FilePath)
	if result.FilePath == "" {
		filename = result.ChatID + "_transcript." + exportExtension(result.Format)
	}
	rh.FileResponse(c, result.Content, filename, result.ContentType)
}

func exportExtension(format string) string {
	if format == models.ExportMarkdown {
		return "md"
	}
	return format
}

// getRequestID 获取请求ID
func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// getResourceNotFoundCode 根据资源类型生成错误代码
func (rh *ResponseHelper) getResourceNotFoundCode(resource string) string {
	switch resource {
	case "Character":
		return ErrorCharacterNotFound
	case "Chat instance":
		return ErrorChatNotFound
	case "Scenario":
		return ErrorScenarioNotFound
	default:
		return ErrorNotFound
	}
}
