package main

import (
	"context"

	"goa.design/agentcore/internal/checkpoint"
	"goa.design/agentcore/internal/config"
	"goa.design/agentcore/internal/contextengine"
	"goa.design/clue/log"
)

// runServe hosts the long-running process backing a HybridAgent
// deployment: it loads configuration, brings up the in-memory
// ContextEngine/Checkpointer reference implementations, and blocks until
// ctx is cancelled by a termination signal. A production deployment
// replaces the in-memory implementations with durable ones and wires in
// concrete LLM providers and transports around this entrypoint; none of
// that is owned by the core.
func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.Printf(ctx, "agentcore serve starting: max_concurrent_tasks=%d max_tokens_per_minute=%d",
		cfg.MaxConcurrentTasks, cfg.MaxTokensPerMinute)

	engine := contextengine.New()
	if err := engine.Initialize(ctx); err != nil {
		return err
	}
	defer engine.Close(context.Background())

	checkpoints := checkpoint.New()
	if _, err := checkpoints.SaveCheckpoint(ctx, "agentcore", "startup", map[string]any{"started": true}); err != nil {
		return err
	}

	<-ctx.Done()
	log.Printf(ctx, "agentcore serve shutting down")
	return nil
}
