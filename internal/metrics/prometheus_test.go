package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// TestPrometheusMetrics_NewPrometheusMetrics 测试Prometheus指标创建
func TestPrometheusMetrics_NewPrometheusMetrics(t *testing.T) {
	config := DefaultMetricsConfig()
	assert.Equal(t, "salesql", config.Namespace)
	assert.Equal(t, "api", config.Subsystem)

	pm := NewPrometheusMetrics(config, zaptest.NewLogger(t))
	require.NotNil(t, pm)
	assert.NotNil(t, pm.Registry())
	assert.NotNil(t, pm.pipelineRequestsTotal)
	assert.NotNil(t, pm.sqlExecutionsTotal)

	// nil配置使用默认值
	assert.NotNil(t, NewPrometheusMetrics(nil, nil))
}

// TestPrometheusMetrics_HTTPMetricsMiddleware 测试HTTP指标中间件
func TestPrometheusMetrics_HTTPMetricsMiddleware(t *testing.T) {
	pm := NewPrometheusMetrics(DefaultMetricsConfig(), zaptest.NewLogger(t))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(pm.HTTPMetricsMiddleware())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	router.POST("/test", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"data":"test"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.httpRequestsTotal.WithLabelValues("GET", "/test", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.httpRequestsTotal.WithLabelValues("POST", "/test", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.httpRequestsTotal.WithLabelValues("GET", "unknown", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.activeRequests))
}

// TestPrometheusMetrics_PipelineMetrics 测试流水线指标
func TestPrometheusMetrics_PipelineMetrics(t *testing.T) {
	pm := NewPrometheusMetrics(DefaultMetricsConfig(), zaptest.NewLogger(t))

	pm.RecordPipeline("success")
	pm.RecordPipeline("success")
	pm.RecordPipeline("extraction-failed")
	pm.RecordCacheLookup("hit")
	pm.RecordCacheLookup("miss")
	pm.ObserveStage(StageGenerate, 800*time.Millisecond)
	pm.ObserveStage(StageExecute, 5*time.Millisecond)
	pm.RecordSQLExecution("success", 3, 10*time.Millisecond)
	pm.RecordSQLExecution("error", 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.pipelineRequestsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.pipelineRequestsTotal.WithLabelValues("extraction-failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.cacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.sqlExecutionsTotal.WithLabelValues("error")))
	assert.Equal(t, 2, testutil.CollectAndCount(pm.stageDuration))
}

// TestPrometheusMetrics_NilReceiver 测试nil接收者安全
func TestPrometheusMetrics_NilReceiver(t *testing.T) {
	var pm *PrometheusMetrics
	assert.NotPanics(t, func() {
		pm.RecordPipeline("success")
		pm.ObserveStage(StageExtract, time.Millisecond)
		pm.RecordCacheLookup("miss")
		pm.RecordSQLExecution("success", 1, time.Millisecond)
	})
}

// TestPrometheusMetrics_GetMetricsHandler 测试指标端点
func TestPrometheusMetrics_GetMetricsHandler(t *testing.T) {
	pm := NewPrometheusMetrics(DefaultMetricsConfig(), zaptest.NewLogger(t))
	pm.RecordPipeline("success")

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/metrics", pm.GetMetricsHandler())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `salesql_pipeline_requests_total{outcome="success"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestCalculateRequestSize(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewBufferString(`{"question":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	size := calculateRequestSize(req)
	assert.Greater(t, size, int64(len(`{"question":"x"}`)))
}
