package main

import (
	"context"

	"goa.design/clue/log"
)

func withDebugLogging(ctx context.Context) context.Context {
	ctx = log.Context(ctx, log.WithDebug())
	log.Debugf(ctx, "debug logs enabled")
	return ctx
}
