package registry_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcore/internal/registry"
)

type calculator struct {
	runs atomic.Int64
}

func (c *calculator) Name() string { return "calculator" }

func (c *calculator) DescribeOperations() []string { return []string{"add"} }

func (c *calculator) ValidateParams(op string, params map[string]any) (bool, string) {
	if op != "add" {
		return false, "unsupported operation"
	}
	if _, ok := params["a"]; !ok {
		return false, "missing field a"
	}
	if _, ok := params["b"]; !ok {
		return false, "missing field b"
	}
	return true, ""
}

func (c *calculator) Run(_ context.Context, op string, params map[string]any) (any, error) {
	c.runs.Add(1)
	a := params["a"].(float64)
	b := params["b"].(float64)
	return a + b, nil
}

func TestInvoke_DirectToolCall(t *testing.T) {
	calc := &calculator{}
	reg := registry.New()
	reg.Register("calculator", calc)

	result, err := reg.Invoke(context.Background(), "calculator", "add", map[string]any{"a": 5.0, "b": 3.0}, registry.InvokeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8.0, result)
	assert.Equal(t, int64(1), calc.runs.Load())
}

func TestInvoke_ToolNotFound(t *testing.T) {
	reg := registry.New()
	_, err := reg.Invoke(context.Background(), "missing", "op", nil, registry.InvokeOptions{})
	require.Error(t, err)
}

func TestInvoke_ValidationError(t *testing.T) {
	calc := &calculator{}
	reg := registry.New()
	reg.Register("calculator", calc)
	_, err := reg.Invoke(context.Background(), "calculator", "add", map[string]any{"a": 1.0}, registry.InvokeOptions{})
	require.Error(t, err)
}

func TestInvoke_CacheHitRate(t *testing.T) {
	calc := &calculator{}
	reg := registry.New(registry.WithCache(1000, 0.8, time.Hour, time.Hour))
	reg.Register("calculator", calc)

	for i := 0; i < 50; i++ {
		params := map[string]any{"a": float64(i), "b": float64(i)}
		for j := 0; j < 2; j++ {
			_, err := reg.Invoke(context.Background(), "calculator", "add", params, registry.InvokeOptions{})
			require.NoError(t, err)
		}
	}

	stats := reg.CacheStats()
	assert.GreaterOrEqual(t, stats.HitRate, 0.5)
	assert.LessOrEqual(t, calc.runs.Load(), int64(50))
}

func TestInvalidateCache(t *testing.T) {
	calc := &calculator{}
	reg := registry.New(registry.WithCache(1000, 0.8, time.Hour, time.Hour))
	reg.Register("calculator", calc)

	_, err := reg.Invoke(context.Background(), "calculator", "add", map[string]any{"a": 1.0, "b": 2.0}, registry.InvokeOptions{})
	require.NoError(t, err)
	before := reg.CacheStats().Size
	require.Equal(t, 1, before)

	removed := reg.InvalidateCache("calculator", "")
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, reg.CacheStats().Size)
}

func TestCache_LRUEvictionAtMaxSizeOne(t *testing.T) {
	c := registry.NewCache(1, 0.8, 0)
	c.Put("a", 1, 0)
	c.ForceCleanup()
	c.Put("b", 2, 0)
	c.ForceCleanup()

	_, hasA := c.Get("a")
	_, hasB := c.Get("b")
	assert.False(t, hasA)
	assert.True(t, hasB)
}

func TestTTLStrategy_WinsOverFixedDefault(t *testing.T) {
	calc := &calculator{}
	reg := registry.New(registry.WithCache(1000, 0.8, time.Hour, time.Hour))
	reg.Register("calculator", calc)

	opts := registry.InvokeOptions{
		TTLStrategy: func(any, map[string]any) time.Duration { return -time.Second },
	}
	params := map[string]any{"a": 1.0, "b": 1.0}
	_, err := reg.Invoke(context.Background(), "calculator", "add", params, opts)
	require.NoError(t, err)

	// A negative/expired TTL means the entry is immediately stale: the next
	// call must miss the cache and re-run the tool.
	_, err = reg.Invoke(context.Background(), "calculator", "add", params, registry.InvokeOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), calc.runs.Load())
}
