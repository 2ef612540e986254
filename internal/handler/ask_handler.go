// 销售问答HTTP API处理器
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"salesql-go/internal/ai"
	"salesql-go/internal/middleware"
	"salesql-go/internal/service"
)

// MaxQuestionLength 问题最大长度
const MaxQuestionLength = 1000

// AskService 问答服务接口
type AskService interface {
	Ask(ctx context.Context, question string) *service.AskResult
	Schema() ai.SchemaDescriptor
}

// AskHandler 问答API处理器
type AskHandler struct {
	service AskService
	logger  *zap.Logger
}

// NewAskHandler 创建问答处理器实例
func NewAskHandler(svc AskService, logger *zap.Logger) *AskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AskHandler{
		service: svc,
		logger:  logger,
	}
}

// AskRequest 问答请求结构
type AskRequest struct {
	Question string `json:"question" binding:"required,max=1000"`
}

// AskResponse 问答响应结构
// 失败时仍然返回生成的语句，方便排查
type AskResponse struct {
	*service.AskResult
	Code string `json:"code,omitempty"`
}

// Ask 处理自然语言问题
// @Summary 销售数据问答
// @Description 把自然语言问题转成SQL并在销售表上执行
// @Tags Ask
// @Accept json
// @Produce json
// @Param request body AskRequest true "问答请求"
// @Success 200 {object} AskResponse "查询结果"
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Failure 422 {object} AskResponse "没有得到可执行的查询或执行失败"
// @Failure 502 {object} AskResponse "语言模型不可用"
// @Router /api/v1/ask [post]
func (h *AskHandler) Ask(c *gin.Context) {
	requestID := c.GetString(middleware.RequestIDKey)

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("请求参数验证失败",
			zap.String("request_id", requestID),
			zap.Error(err))
		respondWithError(c, http.StatusBadRequest, CodeInvalidRequest, "请求参数无效", err.Error())
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		respondWithError(c, http.StatusBadRequest, CodeInvalidRequest, "问题不能为空", "question is blank")
		return
	}

	h.logger.Info("Ask请求开始",
		zap.String("request_id", requestID),
		zap.String("question", question),
		zap.String("remote_addr", c.ClientIP()))

	result := h.service.Ask(c.Request.Context(), question)
	result.RequestID = requestID

	status, code := statusForKind(result.ErrorKind)
	c.JSON(status, &AskResponse{AskResult: result, Code: code})
}

// Schema 返回销售表结构描述
// @Summary 表结构
// @Tags Ask
// @Produce json
// @Success 200 {object} ai.SchemaDescriptor
// @Router /api/v1/schema [get]
func (h *AskHandler) Schema(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Schema())
}
