package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestIDKey 请求ID在gin上下文中的键
const RequestIDKey = "request_id"

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Logger    *zap.Logger
	RateLimit *RateLimitConfig
	CORS      *CORSConfig
	Security  *SecurityConfig
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	RequestsPerSecond int           // 每秒请求数限制
	Burst             int           // 突发请求数
	CleanupInterval   time.Duration // 清理间隔，超过该时间未访问的限流器被移除
}

// CORSConfig CORS配置
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	MaxAge           int // 预检请求缓存时间
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	EnableCSP  bool
	EnableHSTS bool
}

// DefaultMiddlewareConfig 默认中间件配置
func DefaultMiddlewareConfig(logger *zap.Logger) *MiddlewareConfig {
	return &MiddlewareConfig{
		Logger: logger,
		RateLimit: &RateLimitConfig{
			// 每个问题都会调用一次托管模型
			RequestsPerSecond: 5,
			Burst:             10,
			CleanupInterval:   5 * time.Minute,
		},
		CORS: &CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "X-Request-ID"},
			MaxAge:       86400,
		},
		Security: &SecurityConfig{
			EnableCSP:  true,
			EnableHSTS: true,
		},
	}
}

// SetupMiddleware 配置所有中间件
func SetupMiddleware(r *gin.Engine, config *MiddlewareConfig) {
	// 1. 请求ID中间件，后续日志都能带上
	r.Use(RequestIDMiddleware())

	// 2. 恢复中间件 - 防止panic导致服务崩溃
	r.Use(RecoveryMiddleware(config.Logger))

	// 3. 结构化日志中间件
	r.Use(StructuredLogger(config.Logger))

	// 4. 安全头中间件
	r.Use(SecurityHeaders(config.Security))

	// 5. CORS跨域中间件
	r.Use(CORSMiddleware(config.CORS))
}

// RecoveryMiddleware 恢复中间件
// 捕获panic并记录详细错误日志，防止服务崩溃
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("Request panic recovered",
			zap.Any("panic", recovered),
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("remote_addr", c.ClientIP()),
		)

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"code":       "INTERNAL_ERROR",
			"message":    "服务器内部错误",
			"timestamp":  time.Now().Format(time.RFC3339),
			"request_id": c.GetString(RequestIDKey),
		})
	})
}

// StructuredLogger 结构化日志中间件
// 记录每个HTTP请求的方法、路径、状态码和耗时
func StructuredLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_addr", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP Request", fields...)
		default:
			logger.Info("HTTP Request", fields...)
		}
	}
}

// SecurityHeaders 安全头中间件
func SecurityHeaders(config *SecurityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// HSTS头（仅HTTPS）
		if config.EnableHSTS && c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		// 页面只有内联样式，没有脚本
		if config.EnableCSP {
			c.Header("Content-Security-Policy",
				"default-src 'self'; script-src 'none'; style-src 'self' 'unsafe-inline'; form-action 'self'")
		}

		c.Next()
	}
}

// CORSMiddleware CORS跨域中间件
func CORSMiddleware(config *CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && len(config.AllowOrigins) > 0 &&
			(config.AllowOrigins[0] == "*" || contains(config.AllowOrigins, origin)) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		if len(config.AllowMethods) > 0 {
			c.Header("Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ", "))
		}

		if len(config.AllowHeaders) > 0 {
			c.Header("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
		}

		if config.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if config.MaxAge > 0 {
			c.Header("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
		}

		// 处理预检请求
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按客户端IP的限流器
type RateLimiter struct {
	mu              sync.Mutex
	visitors        map[string]*visitor
	rate            rate.Limit
	burst           int
	cleanupInterval time.Duration
	lastCleanup     time.Time
	now             func() time.Time
}

// NewRateLimiter 创建限流器实例
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	interval := config.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RateLimiter{
		visitors:        make(map[string]*visitor),
		rate:            rate.Limit(config.RequestsPerSecond),
		burst:           config.Burst,
		cleanupInterval: interval,
		now:             time.Now,
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.cleanupLocked(now)

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}

// Size 当前跟踪的客户端数量
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// cleanupLocked 移除长时间未访问的限流器
func (rl *RateLimiter) cleanupLocked(now time.Time) {
	if rl.lastCleanup.IsZero() {
		rl.lastCleanup = now
		return
	}
	if now.Sub(rl.lastCleanup) < rl.cleanupInterval {
		return
	}
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) >= rl.cleanupInterval {
			delete(rl.visitors, key)
		}
	}
	rl.lastCleanup = now
}

// RateLimitMiddleware 请求限流中间件
// 按客户端IP限流，保护托管模型的调用额度
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow("ip:" + c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":       "RATE_LIMIT_EXCEEDED",
				"message":    "请求频率超过限制，请稍后重试",
				"timestamp":  time.Now().Format(time.RFC3339),
				"request_id": c.GetString(RequestIDKey),
			})
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件
// 为每个请求生成唯一ID，用于日志追踪和调试
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// contains 检查字符串切片是否包含指定字符串
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
