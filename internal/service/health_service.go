package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"salesql-go/internal/config"
)

// HealthServiceInterface 健康检查服务接口
type HealthServiceInterface interface {
	CheckHealth(ctx context.Context) *HealthCheckResult
	CheckReadiness(ctx context.Context) *ReadinessResult
	GetVersionInfo() map[string]any
}

// StoreChecker 销售数据存储健康检查
type StoreChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger 生成缓存连通性检查
type CachePinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus 健康状态
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// ComponentStatus 单个依赖的检查结果
type ComponentStatus struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Duration  string       `json:"duration,omitempty"`
}

// HealthCheckResult /health 响应
type HealthCheckResult struct {
	Status      HealthStatus               `json:"status"`
	Timestamp   time.Time                  `json:"timestamp"`
	Service     string                     `json:"service"`
	Version     string                     `json:"version"`
	Environment string                     `json:"environment"`
	Components  map[string]ComponentStatus `json:"components"`
	BuildInfo   map[string]any             `json:"build_info,omitempty"`
}

// ReadinessResult /ready 响应
type ReadinessResult struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentStatus `json:"components"`
}

// probe 一个待检查的依赖
type probe struct {
	name    string
	timeout time.Duration
	slow    time.Duration // 超过即视为降级
	check   func(ctx context.Context) error
}

// HealthService 检查销售数据存储和可选的生成缓存
type HealthService struct {
	probes  []probe
	appInfo *config.AppInfo
	logger  *zap.Logger
}

// NewHealthService 创建健康检查服务，cache可以为nil
func NewHealthService(store StoreChecker, cache CachePinger, appInfo *config.AppInfo, logger *zap.Logger) *HealthService {
	if appInfo == nil {
		appInfo = config.DefaultAppInfo()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	storeCheck := func(context.Context) error { return fmt.Errorf("store not configured") }
	if store != nil {
		storeCheck = store.HealthCheck
	}
	probes := []probe{{name: "database", timeout: 5 * time.Second, slow: 2 * time.Second, check: storeCheck}}
	if cache != nil {
		probes = append(probes, probe{name: "cache", timeout: 3 * time.Second, slow: time.Second, check: cache.Ping})
	}

	return &HealthService{probes: probes, appInfo: appInfo, logger: logger}
}

// CheckHealth 存活检查，任一依赖异常时降级
func (h *HealthService) CheckHealth(ctx context.Context) *HealthCheckResult {
	components, healthy := h.runProbes(ctx)

	status := HealthStatusHealthy
	if !healthy {
		status = HealthStatusDegraded
	}

	return &HealthCheckResult{
		Status:      status,
		Timestamp:   time.Now(),
		Service:     h.appInfo.Name,
		Version:     h.appInfo.Version,
		Environment: h.appInfo.Environment,
		Components:  components,
		BuildInfo:   h.appInfo.GetBuildInfo(),
	}
}

// CheckReadiness 就绪检查，所有依赖都必须正常
func (h *HealthService) CheckReadiness(ctx context.Context) *ReadinessResult {
	components, healthy := h.runProbes(ctx)

	status := HealthStatusHealthy
	if !healthy {
		status = HealthStatusUnhealthy
	}

	return &ReadinessResult{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
	}
}

// GetVersionInfo 获取版本信息
func (h *HealthService) GetVersionInfo() map[string]any {
	return h.appInfo.GetBuildInfo()
}

func (h *HealthService) runProbes(ctx context.Context) (map[string]ComponentStatus, bool) {
	components := make(map[string]ComponentStatus, len(h.probes))
	healthy := true
	for _, p := range h.probes {
		st := h.run(ctx, p)
		components[p.name] = st
		if st.Status != HealthStatusHealthy {
			healthy = false
		}
	}
	return components, healthy
}

func (h *HealthService) run(ctx context.Context, p probe) ComponentStatus {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := p.check(probeCtx)
	elapsed := time.Since(start)

	st := ComponentStatus{
		Status:    HealthStatusHealthy,
		Message:   "ok",
		Timestamp: time.Now(),
		Duration:  elapsed.String(),
	}
	switch {
	case err != nil:
		h.logger.Error("health probe failed", zap.String("component", p.name), zap.Error(err))
		st.Status = HealthStatusUnhealthy
		st.Message = err.Error()
	case elapsed > p.slow:
		st.Status = HealthStatusDegraded
		st.Message = fmt.Sprintf("响应较慢: %v", elapsed)
	}
	return st
}
