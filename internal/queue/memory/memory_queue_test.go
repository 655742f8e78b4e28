package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"rcmos/internal/logger"
	queue "rcmos/internal/queue/iface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type task struct {
	N int `json:"n"`
}

func TestRedeliversUntilProcessed(t *testing.T) {
	var attempts atomic.Int32
	q := NewMemoryQueue[task](queue.MessageProcessorFunc[task](func(ctx context.Context, m task) bool {
		return attempts.Add(1) >= 2
	}), 1, logger.NewNop())

	require.NoError(t, q.StartConsumer(context.Background()))
	defer q.StopConsumer(context.Background())

	require.NoError(t, q.Send(context.Background(), task{N: 1}))
	assert.Eventually(t, func() bool { return attempts.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestSendDelayed(t *testing.T) {
	got := make(chan task, 1)
	q := NewMemoryQueue[task](queue.MessageProcessorFunc[task](func(ctx context.Context, m task) bool {
		got <- m
		return true
	}), 1, logger.NewNop())
	require.NoError(t, q.StartConsumer(context.Background()))
	defer q.StopConsumer(context.Background())

	start := time.Now()
	require.NoError(t, q.SendDelayed(context.Background(), task{N: 7}, 50*time.Millisecond))

	select {
	case m := <-got:
		assert.Equal(t, 7, m.N)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}
