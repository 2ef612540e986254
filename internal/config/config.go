// 应用配置加载
// .env + config.yaml + 环境变量，环境变量优先级最高

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "SALESQL"

// Config 应用完整配置
type Config struct {
	App    AppConfig     `mapstructure:"app"`
	Server ServerConfig  `mapstructure:"server"`
	LLM    LLMConfig     `mapstructure:"llm"`
	Store  StoreConfig   `mapstructure:"store"`
	Cache  CacheConfig   `mapstructure:"cache"`
	Log    LoggingConfig `mapstructure:"log"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	Mode              string        `mapstructure:"mode"` // gin模式: debug, release, test
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	RequestsPerSecond int           `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		App: defaultAppConfig(),
		Server: ServerConfig{
			Addr:              ":8080",
			Mode:              "release",
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      90 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		LLM:   DefaultLLMConfig(),
		Store: DefaultStoreConfig(),
		Cache: DefaultCacheConfig(),
		Log: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load 加载配置
// configFile为空时在当前目录和./configs下查找config.yaml，找不到不视为错误
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 兼容原有的环境变量命名
	_ = v.BindEnv("llm.model", envPrefix+"_LLM_MODEL", "MODEL_NAME")
	_ = v.BindEnv("llm.api_key", envPrefix+"_LLM_API_KEY", "HUGGINGFACEHUB_API_TOKEN")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	return cfg, nil
}

// Validate 验证全部配置
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr cannot be empty")
	}
	switch c.Server.Mode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("unsupported server mode: %s", c.Server.Mode)
	}
	if c.Server.RequestsPerSecond <= 0 || c.Server.Burst <= 0 {
		return fmt.Errorf("rate limit must be positive, got: %d rps / %d burst",
			c.Server.RequestsPerSecond, c.Server.Burst)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm config invalid: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config invalid: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config invalid: %w", err)
	}
	return nil
}

// setDefaults 注册所有键的默认值，AutomaticEnv只对已知键生效
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("app.name", d.App.Name)
	v.SetDefault("app.version", d.App.Version)
	v.SetDefault("app.environment", d.App.Environment)
	v.SetDefault("app.git_commit", d.App.GitCommit)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.requests_per_second", d.Server.RequestsPerSecond)
	v.SetDefault("server.burst", d.Server.Burst)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.top_k", d.LLM.TopK)
	v.SetDefault("llm.top_p", d.LLM.TopP)
	v.SetDefault("llm.repetition_penalty", d.LLM.RepetitionPenalty)
	v.SetDefault("llm.timeout", d.LLM.Timeout)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.query_timeout", d.Store.QueryTimeout)
	v.SetDefault("store.max_rows", d.Store.MaxRows)
	v.SetDefault("store.seed_file", d.Store.SeedFile)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.addr", d.Cache.Addr)
	v.SetDefault("cache.password", d.Cache.Password)
	v.SetDefault("cache.db", d.Cache.DB)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.dial_timeout", d.Cache.DialTimeout)
	v.SetDefault("cache.read_timeout", d.Cache.ReadTimeout)
	v.SetDefault("cache.write_timeout", d.Cache.WriteTimeout)
	v.SetDefault("cache.pool_size", d.Cache.PoolSize)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
