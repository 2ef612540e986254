package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"salesql-go/internal/service"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	service service.HealthServiceInterface
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(svc service.HealthServiceInterface) *HealthHandler {
	return &HealthHandler{service: svc}
}

// Health 存活检查，降级仍返回200
func (h *HealthHandler) Health(c *gin.Context) {
	result := h.service.CheckHealth(c.Request.Context())

	status := http.StatusOK
	if result.Status == service.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}

// Ready 就绪检查，所有组件必须正常
func (h *HealthHandler) Ready(c *gin.Context) {
	result := h.service.CheckReadiness(c.Request.Context())

	status := http.StatusOK
	if result.Status != service.HealthStatusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}

// Version 版本信息
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetVersionInfo())
}
