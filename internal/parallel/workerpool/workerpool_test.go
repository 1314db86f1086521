package workerpool_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcore/internal/parallel/workerpool"
)

func TestPool_RunsSubmittedJobs(t *testing.T) {
	pool := workerpool.New(2)
	defer pool.Close()

	var completed atomic.Int64
	done := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		job := func(ctx context.Context) {
			completed.Add(1)
			done <- struct{}{}
		}
		require.NoError(t, pool.Submit(context.Background(), job))
	}
	for i := 0; i < 5; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for job completion")
		}
	}
	assert.Equal(t, int64(5), completed.Load())
}

func TestPool_SubmitRespectsContextCancellation(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Close()

	block := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) {
		<-block
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Submit(ctx, func(ctx context.Context) {})
	assert.Error(t, err)
	close(block)
}
