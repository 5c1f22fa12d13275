package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"propbook/pkg/config"
	"propbook/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{Log: logger.Discard(), ShutdownTimeout: time.Second}
}

func TestRunContext_StopsWorkersOnCancel(t *testing.T) {
	a := NewApplication(testConfig())
	var stopped atomic.Int32
	for _, name := range []string{"relay", "scheduler"} {
		a.AddWorker(name, func(ctx context.Context) error {
			<-ctx.Done()
			stopped.Add(1)
			return ctx.Err()
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	require.NoError(t, a.RunContext(ctx))
	assert.Equal(t, int32(2), stopped.Load())
}

func TestRunContext_WorkerFailureStopsTheRest(t *testing.T) {
	a := NewApplication(testConfig())
	var peerStopped atomic.Bool
	a.AddWorker("audit", func(context.Context) error {
		return errors.New("broker unreachable")
	})
	a.AddWorker("relay", func(ctx context.Context) error {
		<-ctx.Done()
		peerStopped.Store(true)
		return nil
	})

	err := a.RunContext(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker audit")
	assert.True(t, peerStopped.Load())
}
