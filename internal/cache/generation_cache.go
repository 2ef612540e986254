// Package cache 缓存模型对相同提示词的原始输出
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "salesql:generation:"

// GenerationCache 基于Redis的生成结果缓存
// 键由模型标识和完整提示词计算，提示词中含当前年月，跨月自然失效
type GenerationCache struct {
	client *redis.Client
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

// NewGenerationCache 创建生成结果缓存
func NewGenerationCache(client *redis.Client, model string, ttl time.Duration, logger *zap.Logger) *GenerationCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationCache{
		client: client,
		model:  model,
		ttl:    ttl,
		logger: logger,
	}
}

// Key 计算提示词对应的缓存键
func (c *GenerationCache) Key(prompt string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + prompt))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get 读取缓存，未命中时返回false
func (c *GenerationCache) Get(ctx context.Context, prompt string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.Key(prompt)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read generation cache: %w", err)
	}
	return val, true, nil
}

// Set 写入缓存
func (c *GenerationCache) Set(ctx context.Context, prompt, raw string) error {
	if err := c.client.Set(ctx, c.Key(prompt), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write generation cache: %w", err)
	}
	c.logger.Debug("generation cached", zap.Duration("ttl", c.ttl))
	return nil
}

// Ping 检查Redis连接
func (c *GenerationCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
