package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestCache(t *testing.T, model string) (*GenerationCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewGenerationCache(client, model, time.Minute, zaptest.NewLogger(t)), mr
}

func TestGenerationCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t, "mistral")
	ctx := context.Background()

	_, hit, err := c.Get(ctx, "prompt")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "prompt", "SELECT 1;"))

	val, hit, err := c.Get(ctx, "prompt")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "SELECT 1;", val)

	assert.Equal(t, time.Minute, mr.TTL(c.Key("prompt")))
}

func TestGenerationCacheExpires(t *testing.T) {
	c, mr := newTestCache(t, "mistral")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "prompt", "SELECT 1;"))
	mr.FastForward(2 * time.Minute)

	_, hit, err := c.Get(ctx, "prompt")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestGenerationCacheKeyIncludesModel(t *testing.T) {
	a, _ := newTestCache(t, "model-a")
	b, _ := newTestCache(t, "model-b")

	assert.NotEqual(t, a.Key("same prompt"), b.Key("same prompt"))
	assert.Equal(t, a.Key("same prompt"), a.Key("same prompt"))
	assert.Contains(t, a.Key("p"), keyPrefix)
}

func TestGenerationCacheUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := NewGenerationCache(client, "mistral", time.Minute, nil)

	_, _, err := c.Get(context.Background(), "prompt")
	assert.Error(t, err)
	assert.Error(t, c.Set(context.Background(), "prompt", "x"))
	assert.Error(t, c.Ping(context.Background()))
}
