package main

import (
	"context"
	"fmt"

	"goa.design/agentcore/internal/config"
	"goa.design/agentcore/internal/dsl"
	"goa.design/agentcore/internal/dslengine"
	"goa.design/agentcore/internal/dslvalidate"
	"goa.design/agentcore/internal/model"
	"goa.design/agentcore/internal/registry"
	"goa.design/agentcore/internal/telemetry"
	"goa.design/agentcore/internal/tools/builtin"
	"goa.design/clue/log"
)

func runWorkflow(ctx context.Context, file, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	parsed, err := loadDSL(file)
	if err != nil {
		return err
	}
	if !parsed.Success {
		return parseIssuesError(parsed.Errors)
	}

	validator := dslvalidate.New(dslvalidate.WithCatalog(dslvalidate.Catalog{
		Tools: func(name string) bool { return builtinToolNames[name] },
	}))
	validation := validator.Validate(parsed.Root)
	if !validation.IsValid {
		return &validationFailedError{result: validation}
	}

	logger := telemetry.NewClueLogger()
	reg := registry.New(
		registry.WithLogger(logger),
		registry.WithCache(cfg.ToolCache.MaxCacheSize, cfg.ToolCache.CleanupThreshold, cfg.ToolCache.CleanupInterval, cfg.ToolCache.DefaultTTL),
		registry.WithRateLimit(cfg.RateLimitRequestsPerSecond, cfg.BatchSize),
	)
	reg.Register("echo", builtin.Echo{})

	engine := dslengine.New(dslengine.TaskExecutorFunc(func(ctx context.Context, taskCfg dsl.TaskConfig, params map[string]any) (any, error) {
		var lastErr error
		for _, toolName := range taskCfg.Tools {
			value, err := reg.Invoke(ctx, toolName, taskCfg.Task, params, registry.InvokeOptions{})
			if err == nil {
				return value, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}), dslengine.WithLogger(logger))

	execCtx := model.NewExecutionContext("")
	results, err := engine.Execute(ctx, parsed.Root, execCtx)
	if err != nil {
		return err
	}

	for nodeID, res := range results {
		log.Printf(ctx, "node %s: status=%s result=%v", nodeID, res.Status, res.Result)
	}
	fmt.Printf("executed %d node(s)\n", len(results))
	return nil
}
