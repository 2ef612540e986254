package handler

import (
	"embed"
	"html/template"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"salesql-go/internal/ai"
	"salesql-go/internal/middleware"
	"salesql-go/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// indexTemplate 页面模板名
const indexTemplate = "index.html"

// PageHandler 问答表单页面
type PageHandler struct {
	service AskService
	title   string
	logger  *zap.Logger
}

// pageData 页面渲染数据
type pageData struct {
	Title    string
	Question string
	Schema   ai.SchemaDescriptor
	Notice   string
	Result   *service.AskResult
}

// NewPageHandler 创建页面处理器
func NewPageHandler(svc AskService, title string, logger *zap.Logger) *PageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if title == "" {
		title = "Chat with SQL Bot"
	}
	return &PageHandler{
		service: svc,
		title:   title,
		logger:  logger,
	}
}

// Templates 解析内嵌的页面模板
func Templates() (*template.Template, error) {
	return template.New("").ParseFS(templateFS, "templates/*.html")
}

// Index 渲染空表单
func (h *PageHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, indexTemplate, h.data(""))
}

// Submit 处理表单提交并渲染结果表格
func (h *PageHandler) Submit(c *gin.Context) {
	question := strings.TrimSpace(c.PostForm("question"))
	data := h.data(question)

	switch {
	case question == "":
		data.Notice = "Please enter a question."
	case utf8.RuneCountInString(question) > MaxQuestionLength:
		data.Notice = "The question is too long."
		c.HTML(http.StatusBadRequest, indexTemplate, data)
		return
	default:
		result := h.service.Ask(c.Request.Context(), question)
		result.RequestID = c.GetString(middleware.RequestIDKey)
		data.Result = result
		h.logger.Debug("form question answered",
			zap.String("request_id", result.RequestID),
			zap.Bool("succeeded", result.Succeeded()))
	}

	c.HTML(http.StatusOK, indexTemplate, data)
}

func (h *PageHandler) data(question string) pageData {
	return pageData{
		Title:    h.title,
		Question: question,
		Schema:   h.service.Schema(),
	}
}
