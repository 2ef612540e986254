package config

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// 支持的模型提供商
const (
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
	ProviderOllama      = "ollama"
)

// LLMConfig 模型客户端配置
// 以显式配置对象的形式传入模型客户端构造函数，业务逻辑中不直接读取环境变量
type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Temperature       float64       `mapstructure:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	TopK              int           `mapstructure:"top_k"`
	TopP              float64       `mapstructure:"top_p"`
	RepetitionPenalty float64       `mapstructure:"repetition_penalty"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// DefaultLLMConfig 创建默认模型配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:          ProviderHuggingFace,
		Model:             "mistralai/Mistral-7B-Instruct-v0.3",
		Temperature:       0.1,
		MaxTokens:         1024,
		TopK:              50,
		RepetitionPenalty: 1.03,
		Timeout:           30 * time.Second,
	}
}

// Validate 验证模型配置的有效性
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case ProviderHuggingFace, ProviderOpenAI, ProviderAnthropic:
		if c.APIKey == "" {
			return fmt.Errorf("api_key cannot be empty for provider %s", c.Provider)
		}
	case ProviderOllama:
		// 本地模型不需要访问凭据
	case "":
		return fmt.Errorf("provider cannot be empty")
	default:
		return fmt.Errorf("unsupported provider: %s", c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got: %.2f", c.Temperature)
	}

	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got: %d", c.MaxTokens)
	}

	if c.TopK < 0 {
		return fmt.Errorf("top_k cannot be negative, got: %d", c.TopK)
	}

	// 0表示使用提供商默认值
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("top_p must be between 0 and 1, got: %.2f", c.TopP)
	}

	if c.RepetitionPenalty < 0 {
		return fmt.Errorf("repetition_penalty cannot be negative, got: %.2f", c.RepetitionPenalty)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %v", c.Timeout)
	}

	return nil
}

// LogConfig 记录模型配置信息（不包含敏感信息）
func (c *LLMConfig) LogConfig(logger *zap.Logger) {
	logger.Info("LLM configuration",
		zap.String("provider", c.Provider),
		zap.String("model", c.Model),
		zap.Bool("api_key_set", c.APIKey != ""),
		zap.String("base_url", c.BaseURL),
		zap.Float64("temperature", c.Temperature),
		zap.Int("max_tokens", c.MaxTokens),
		zap.Int("top_k", c.TopK),
		zap.Float64("top_p", c.TopP),
		zap.Float64("repetition_penalty", c.RepetitionPenalty),
		zap.Duration("timeout", c.Timeout),
	)
}
