package config

import (
	"runtime"
	"time"
)

// AppConfig 应用基础配置
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	GitCommit   string `mapstructure:"git_commit"`
}

// AppInfo 应用信息
type AppInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	BuildTime   string `json:"build_time"`
	GitCommit   string `json:"git_commit"`
	GoVersion   string `json:"go_version"`
	Environment string `json:"environment"`
}

// DefaultAppInfo 返回默认的应用信息
func DefaultAppInfo() *AppInfo {
	return NewAppInfo(defaultAppConfig())
}

// NewAppInfo 根据应用配置创建应用信息
func NewAppInfo(cfg AppConfig) *AppInfo {
	gitCommit := cfg.GitCommit
	if gitCommit == "" {
		gitCommit = "unknown"
	}

	return &AppInfo{
		Name:        cfg.Name,
		Version:     cfg.Version,
		BuildTime:   time.Now().UTC().Format(time.RFC3339),
		GitCommit:   gitCommit,
		GoVersion:   runtime.Version(),
		Environment: cfg.Environment,
	}
}

// GetBuildInfo 获取构建信息
func (a *AppInfo) GetBuildInfo() map[string]any {
	return map[string]any{
		"name":        a.Name,
		"version":     a.Version,
		"build_time":  a.BuildTime,
		"git_commit":  a.GitCommit,
		"go_version":  a.GoVersion,
		"environment": a.Environment,
	}
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Name:        "salesql",
		Version:     "0.1.0",
		Environment: "development",
	}
}
