package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"salesql-go/internal/metrics"
	"salesql-go/internal/middleware"
	"salesql-go/internal/service"
)

// RouterConfig 路由配置结构
type RouterConfig struct {
	AskHandler    *AskHandler
	PageHandler   *PageHandler
	HealthService service.HealthServiceInterface
	Metrics       *metrics.PrometheusMetrics // 为空时不暴露/metrics
	RateLimiter   *middleware.RateLimiter    // 为空时不限流
}

// SetupRoutes 配置所有路由
// 只有会调用语言模型的路由才限流
func SetupRoutes(r *gin.Engine, config *RouterConfig) error {
	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if config.RateLimiter != nil {
		limit = middleware.RateLimitMiddleware(config.RateLimiter)
	}

	if config.PageHandler != nil {
		tmpl, err := Templates()
		if err != nil {
			return fmt.Errorf("failed to parse page templates: %w", err)
		}
		r.SetHTMLTemplate(tmpl)

		r.GET("/", config.PageHandler.Index)
		r.POST("/", limit, config.PageHandler.Submit)
	}

	v1 := r.Group("/api/v1")
	if config.AskHandler != nil {
		v1.POST("/ask", limit, config.AskHandler.Ask)
		v1.GET("/schema", config.AskHandler.Schema)
	}

	setupSystemRoutes(r, config)
	return nil
}

// setupSystemRoutes 配置系统级路由
func setupSystemRoutes(r *gin.Engine, config *RouterConfig) {
	if config.HealthService != nil {
		health := NewHealthHandler(config.HealthService)
		r.GET("/health", health.Health)
		r.GET("/ready", health.Ready)
		r.GET("/version", health.Version)
	}

	if config.Metrics != nil {
		r.GET("/metrics", config.Metrics.GetMetricsHandler())
	}
}

// 拒绝未知字段，数字按json.Number解码
func init() {
	binding.EnableDecoderUseNumber = true
	binding.EnableDecoderDisallowUnknownFields = true
}
