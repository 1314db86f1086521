// Command agentcore is the CLI entrypoint for the agent execution core:
// validating and running DSL workflows, and hosting the long-running
// process that backs a HybridAgent deployment.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"goa.design/clue/log"
)

func main() {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := buildRootCmd()
	cmd.SetContext(ctx)
	if err := cmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}
