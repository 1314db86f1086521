// Package registry implements the ToolRegistry & Executor (spec §4.A):
// lookup, schema-validate, cache, rate-limit and run tool operations.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"goa.design/agentcore/internal/telemetry"
	"goa.design/agentcore/internal/tools"
	"goa.design/agentcore/internal/toolerrors"
)

// TTLStrategy computes a cache TTL from a tool's result and the
// parameters that produced it. When set on Registry.Invoke's options it
// wins over the registry's fixed default TTL (spec §4.A tie-break rule).
type TTLStrategy func(result any, params map[string]any) time.Duration

// InvokeOptions carries per-call context used to scope caching and rate
// limiting.
type InvokeOptions struct {
	UserID      string
	TaskID      string
	TTLStrategy TTLStrategy
}

// Registry resolves tool names to Tool implementations and drives the
// invocation contract described in spec §4.A.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tools.Tool
	specs map[string]map[string]*jsonschema.Schema // toolName -> op -> compiled schema

	cacheEnabled bool
	cache        *Cache
	defaultTTL   time.Duration

	limiters *limiterPool

	logger telemetry.Logger
	tracer telemetry.Tracer
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(l telemetry.Logger) Option { return func(r *Registry) { r.logger = l } }

// WithTracer sets the registry's tracer.
func WithTracer(t telemetry.Tracer) Option { return func(r *Registry) { r.tracer = t } }

// WithCache enables caching with the given limits. Disabled by default.
func WithCache(maxSize int, cleanupThreshold float64, cleanupInterval, defaultTTL time.Duration) Option {
	return func(r *Registry) {
		r.cacheEnabled = true
		r.cache = NewCache(maxSize, cleanupThreshold, cleanupInterval)
		r.defaultTTL = defaultTTL
	}
}

// WithRateLimit configures the per-(user,tool) token bucket. Defaults to
// 5 req/s with burst 5 when never called.
func WithRateLimit(ratePerSecond float64, burst int) Option {
	return func(r *Registry) { r.limiters = newLimiterPool(ratePerSecond, burst) }
}

// New constructs a Registry with the given options.
func New(opts ...Option) *Registry {
	r := &Registry{
		tools:    map[string]tools.Tool{},
		specs:    map[string]map[string]*jsonschema.Schema{},
		limiters: newLimiterPool(5, 5),
		logger:   telemetry.NewNoopLogger(),
		tracer:   telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register adds a tool under name, compiling any statically declared
// operation schemas for later structural validation.
func (r *Registry) Register(name string, t tools.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = t
	if sp, ok := t.(tools.SchemaProvider); ok {
		schemas := map[string]*jsonschema.Schema{}
		for _, op := range t.DescribeOperations() {
			if opSchema, ok := sp.OperationSchema(op); ok {
				if compiled, err := compileOperationSchema(opSchema); err == nil {
					schemas[op] = compiled
				}
			}
		}
		r.specs[name] = schemas
	}
}

// Get resolves name to its registered Tool.
func (r *Registry) Get(name string) (tools.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Invoke runs the full §4.A invocation contract: resolve, validate, cache
// lookup, rate limit, run, and cache population on success.
func (r *Registry) Invoke(ctx context.Context, name, operation string, params map[string]any, opts InvokeOptions) (any, error) {
	ctx, span := r.tracer.Start(ctx, "registry.invoke")
	defer span.End()

	t, ok := r.Get(name)
	if !ok {
		return nil, toolerrors.Newf(toolerrors.CodeToolNotFound, "tool %q not found", name)
	}

	ok, remediation := t.ValidateParams(operation, params)
	if !ok {
		return nil, toolerrors.Newf(toolerrors.CodeValidation, "invalid parameters for %s.%s: %s", name, operation, remediation)
	}
	r.mu.RLock()
	if schemas, exists := r.specs[name]; exists {
		if schema, exists := schemas[operation]; exists {
			if ok, msg := validateAgainstSchema(schema, params); !ok {
				r.mu.RUnlock()
				return nil, toolerrors.Newf(toolerrors.CodeValidation, "%s", msg)
			}
		}
	}
	r.mu.RUnlock()

	found := false
	for _, op := range t.DescribeOperations() {
		if op == operation {
			found = true
			break
		}
	}
	if !found {
		return nil, toolerrors.Newf(toolerrors.CodeOperationNotFound, "tool %q has no operation %q", name, operation)
	}

	cacheKey := ""
	if r.cacheEnabled {
		cacheKey = CanonicalKey(name, operation, params, opts.UserID, opts.TaskID)
		if cached, hit := r.cache.Get(cacheKey); hit {
			r.logger.Debug(ctx, "tool cache hit", "tool", name, "operation", operation)
			return cached, nil
		}
	}

	limiter := r.limiters.get(opts.UserID, name)
	if err := limiter.Wait(ctx); err != nil {
		return nil, toolerrors.Wrap(toolerrors.CodeResourceExhausted, "rate limit wait canceled", err)
	}

	start := time.Now()
	result, err := t.Run(ctx, operation, params)
	if err != nil {
		span.RecordError(err)
		return nil, toolerrors.Wrap(toolerrors.CodeExecution, fmt.Sprintf("%s.%s failed", name, operation), err)
	}
	r.logger.Debug(ctx, "tool invoked", "tool", name, "operation", operation, "duration_ms", float64(time.Since(start))/float64(time.Millisecond))

	if r.cacheEnabled {
		ttl := r.defaultTTL
		if opts.TTLStrategy != nil {
			ttl = opts.TTLStrategy(result, params)
		}
		r.cache.Put(cacheKey, result, ttl.Seconds())
	}

	return result, nil
}

// InvalidateCache removes cache entries for toolName (exact prefix match)
// or matching pattern, returning the number removed. No-op when caching is
// disabled.
func (r *Registry) InvalidateCache(toolName, pattern string) int {
	if !r.cacheEnabled {
		return 0
	}
	return r.cache.Invalidate(toolName, pattern)
}

// CacheStats reports cache utilization. Returns the zero value when caching
// is disabled.
func (r *Registry) CacheStats() CacheStats {
	if !r.cacheEnabled {
		return CacheStats{}
	}
	return r.cache.Stats()
}

// ForceCacheCleanup triggers an immediate LRU/expiry sweep, bypassing the
// cleanup interval throttle.
func (r *Registry) ForceCacheCleanup() {
	if r.cacheEnabled {
		r.cache.ForceCleanup()
	}
}

// CanonicalKey computes a stable cache key from the invocation's identity:
// tool name, operation, canonicalized (key-sorted) JSON of params, user id
// and task id.
func CanonicalKey(toolName, operation string, params map[string]any, userID, taskID string) string {
	canon := canonicalizeJSON(params)
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write([]byte(operation))
	h.Write([]byte{0})
	h.Write(canon)
	h.Write([]byte{0})
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(taskID))
	return toolName + ":" + operation + ":" + hex.EncodeToString(h.Sum(nil))
}

// canonicalizeJSON renders params with map keys sorted so structurally
// identical parameter sets hash identically regardless of map iteration
// order.
func canonicalizeJSON(params map[string]any) []byte {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, params[k])
	}
	raw, _ := json.Marshal(ordered)
	return raw
}
