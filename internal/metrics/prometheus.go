package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// 流水线阶段
const (
	StageGenerate = "generate"
	StageExtract  = "extract"
	StageExecute  = "execute"
)

// PrometheusMetrics Prometheus指标收集器
// 收集HTTP请求、流水线各阶段和SQL执行指标
// 所有记录方法对nil接收者安全
type PrometheusMetrics struct {
	// HTTP请求相关指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	activeRequests      prometheus.Gauge

	// 业务指标
	pipelineRequestsTotal *prometheus.CounterVec
	stageDuration         *prometheus.HistogramVec
	cacheLookupsTotal     *prometheus.CounterVec
	sqlExecutionsTotal    *prometheus.CounterVec
	sqlExecutionDuration  prometheus.Histogram
	resultRows            prometheus.Histogram

	// 注册器
	registry *prometheus.Registry

	logger *zap.Logger
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Namespace      string // 指标命名空间
	Subsystem      string // 指标子系统
	ServiceName    string // 服务名称
	ServiceVersion string // 服务版本
}

// DefaultMetricsConfig 默认指标配置
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Namespace:      "salesql",
		Subsystem:      "api",
		ServiceName:    "salesql",
		ServiceVersion: "0.1.0",
	}
}

// NewPrometheusMetrics 创建Prometheus指标收集器
func NewPrometheusMetrics(config *MetricsConfig, logger *zap.Logger) *PrometheusMetrics {
	if config == nil {
		config = DefaultMetricsConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pm := &PrometheusMetrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	pm.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	pm.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	pm.httpRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   []float64{256, 1024, 4096, 16384, 65536},
		},
		[]string{"method", "endpoint"},
	)

	pm.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "active_requests",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	pm.pipelineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Total number of questions processed, by outcome",
		},
		[]string{"outcome"},
	)

	pm.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	pm.cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Generation cache lookups by result",
		},
		[]string{"result"},
	)

	pm.sqlExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "sql",
			Name:      "executions_total",
			Help:      "Total number of SQL executions",
		},
		[]string{"status"},
	)

	pm.sqlExecutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: "sql",
			Name:      "execution_duration_seconds",
			Help:      "SQL execution duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	pm.resultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: "sql",
			Name:      "result_rows",
			Help:      "Number of rows returned per query",
			Buckets:   []float64{0, 1, 10, 100, 1000},
		},
	)

	pm.registerMetrics()

	logger.Info("Prometheus metrics initialized successfully",
		zap.String("namespace", config.Namespace),
		zap.String("subsystem", config.Subsystem))

	return pm
}

// registerMetrics 注册所有指标到Prometheus
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.httpRequestsTotal,
		pm.httpRequestDuration,
		pm.httpRequestSize,
		pm.activeRequests,
		pm.pipelineRequestsTotal,
		pm.stageDuration,
		pm.cacheLookupsTotal,
		pm.sqlExecutionsTotal,
		pm.sqlExecutionDuration,
		pm.resultRows,
	)

	// 运行时和进程指标
	pm.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry 返回内部注册器
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// HTTPMetricsMiddleware HTTP指标收集中间件
func (pm *PrometheusMetrics) HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestSize := calculateRequestSize(c.Request)

		pm.activeRequests.Inc()
		defer pm.activeRequests.Dec()

		c.Next()

		method := c.Request.Method
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		statusCode := strconv.Itoa(c.Writer.Status())

		pm.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
		pm.httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
		if requestSize > 0 {
			pm.httpRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
		}
	}
}

// RecordPipeline 记录一次问答的最终结果
// outcome为success或错误类型
func (pm *PrometheusMetrics) RecordPipeline(outcome string) {
	if pm == nil {
		return
	}
	pm.pipelineRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage 记录流水线阶段耗时
func (pm *PrometheusMetrics) ObserveStage(stage string, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordCacheLookup 记录缓存查询结果: hit, miss, error
func (pm *PrometheusMetrics) RecordCacheLookup(result string) {
	if pm == nil {
		return
	}
	pm.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordSQLExecution 记录SQL执行指标
func (pm *PrometheusMetrics) RecordSQLExecution(status string, rows int, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.sqlExecutionsTotal.WithLabelValues(status).Inc()
	pm.sqlExecutionDuration.Observe(duration.Seconds())
	pm.resultRows.Observe(float64(rows))
}

// GetMetricsHandler 获取Prometheus指标端点处理器
func (pm *PrometheusMetrics) GetMetricsHandler() gin.HandlerFunc {
	h := promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// calculateRequestSize 计算请求大小
func calculateRequestSize(r *http.Request) int64 {
	size := int64(0)

	if r.ContentLength > 0 {
		size += r.ContentLength
	}

	for name, values := range r.Header {
		size += int64(len(name))
		for _, value := range values {
			size += int64(len(value))
		}
	}

	size += int64(len(r.URL.String()))

	return size
}
