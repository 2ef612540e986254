// 模型客户端
// 基于LangChainGo，支持HuggingFace、OpenAI、Anthropic、Ollama

package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/huggingface"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"salesql-go/internal/config"
)

// ModelClient 模型调用边界
type ModelClient interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// LangChainClient 基于llms.Model的模型客户端
type LangChainClient struct {
	model  llms.Model
	config config.LLMConfig
	logger *zap.Logger
}

// NewLangChainClient 根据配置创建模型客户端
func NewLangChainClient(cfg config.LLMConfig, logger *zap.Logger) (*LangChainClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid llm config: %w", err)
	}

	model, err := createLLMProvider(cfg, newHTTPClient(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider %s: %w", cfg.Provider, err)
	}

	return NewLangChainClientWithModel(model, cfg, logger), nil
}

// NewLangChainClientWithModel 使用已有的llms.Model创建客户端
func NewLangChainClientWithModel(model llms.Model, cfg config.LLMConfig, logger *zap.Logger) *LangChainClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LangChainClient{
		model:  model,
		config: cfg,
		logger: logger,
	}
}

// createLLMProvider 创建特定提供商的LLM实例
func createLLMProvider(cfg config.LLMConfig, httpClient *http.Client) (llms.Model, error) {
	switch cfg.Provider {
	case config.ProviderHuggingFace:
		return createHuggingFaceClient(cfg)
	case config.ProviderOpenAI:
		return createOpenAIClient(cfg, httpClient)
	case config.ProviderAnthropic:
		return createAnthropicClient(cfg, httpClient)
	case config.ProviderOllama:
		return createOllamaClient(cfg, httpClient)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// createHuggingFaceClient 创建HuggingFace推理接口客户端
func createHuggingFaceClient(cfg config.LLMConfig) (llms.Model, error) {
	opts := []huggingface.Option{
		huggingface.WithToken(cfg.APIKey),
		huggingface.WithModel(cfg.Model),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, huggingface.WithURL(cfg.BaseURL))
	}

	return huggingface.New(opts...)
}

// createOpenAIClient 创建OpenAI客户端
func createOpenAIClient(cfg config.LLMConfig, httpClient *http.Client) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(httpClient),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	return openai.New(opts...)
}

// createAnthropicClient 创建Anthropic客户端
func createAnthropicClient(cfg config.LLMConfig, httpClient *http.Client) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithToken(cfg.APIKey),
		anthropic.WithModel(cfg.Model),
		anthropic.WithHTTPClient(httpClient),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	return anthropic.New(opts...)
}

// createOllamaClient 创建Ollama客户端
func createOllamaClient(cfg config.LLMConfig, httpClient *http.Client) (llms.Model, error) {
	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(httpClient),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}

	return ollama.New(opts...)
}

// callOptions 生成参数
func (c *LangChainClient) callOptions() []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithTemperature(c.config.Temperature),
		llms.WithMaxTokens(c.config.MaxTokens),
	}
	if c.config.TopK > 0 {
		opts = append(opts, llms.WithTopK(c.config.TopK))
	}
	if c.config.TopP > 0 {
		opts = append(opts, llms.WithTopP(c.config.TopP))
	}
	if c.config.RepetitionPenalty > 0 {
		opts = append(opts, llms.WithRepetitionPenalty(c.config.RepetitionPenalty))
	}
	return opts
}

// Invoke 发送提示词并返回模型原始输出
// 调用失败统一归类为 model-unavailable，不做重试
func (c *LangChainClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if c.model == nil {
		return "", NewRejection(KindModelUnavailable, "model client not initialized", nil)
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, c.callOptions()...)
	if err != nil {
		c.logger.Warn("LLM invocation failed",
			zap.String("provider", c.config.Provider),
			zap.String("model", c.config.Model),
			zap.Error(err))
		return "", NewRejection(KindModelUnavailable, "model invocation failed", err)
	}

	c.logger.Debug("LLM invocation succeeded",
		zap.String("provider", c.config.Provider),
		zap.Int("response_length", len(text)))

	return text, nil
}
