package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"salesql-go/internal/ai"
	"salesql-go/internal/middleware"
)

// ErrorResponse 标准错误响应结构
type ErrorResponse struct {
	Code      string `json:"code" example:"INVALID_REQUEST"`
	Message   string `json:"message" example:"请求参数格式错误"`
	Details   string `json:"details,omitempty" example:"question is required"`
	Timestamp string `json:"timestamp" example:"2025-02-14T12:00:00Z"`
	RequestID string `json:"request_id,omitempty" example:"3f1c2a9e-8d4b-4c1a-9a77-0b5e6f1d2c3b"`
}

// 错误码
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeModelUnavailable = "MODEL_UNAVAILABLE"
	CodeNoValidQuery     = "NO_VALID_QUERY"
	CodeExtractionFailed = "EXTRACTION_FAILED"
	CodeUnsafeStatement  = "UNSAFE_STATEMENT"
	CodeExecutionError   = "EXECUTION_ERROR"
	CodeInternalError    = "INTERNAL_ERROR"
)

// NewErrorResponse 创建标准错误响应
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// WithDetails 添加错误详情
func (e *ErrorResponse) WithDetails(details string) *ErrorResponse {
	e.Details = details
	return e
}

// WithRequestID 添加请求ID
func (e *ErrorResponse) WithRequestID(requestID string) *ErrorResponse {
	e.RequestID = requestID
	return e
}

// respondWithError 统一错误响应
func respondWithError(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, NewErrorResponse(code, message).
		WithDetails(details).
		WithRequestID(c.GetString(middleware.RequestIDKey)))
}

// statusForKind 流水线错误分类对应的HTTP状态码和错误码
func statusForKind(kind ai.ErrorKind) (int, string) {
	switch kind {
	case ai.KindNone:
		return http.StatusOK, ""
	case ai.KindModelUnavailable:
		return http.StatusBadGateway, CodeModelUnavailable
	case ai.KindGenerationEmptyOrInvalid:
		return http.StatusUnprocessableEntity, CodeNoValidQuery
	case ai.KindExtractionFailed:
		return http.StatusUnprocessableEntity, CodeExtractionFailed
	case ai.KindUnsafeStatement:
		return http.StatusUnprocessableEntity, CodeUnsafeStatement
	case ai.KindExecutionError:
		return http.StatusUnprocessableEntity, CodeExecutionError
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}
