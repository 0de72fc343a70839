package queue

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadekit/cascade/internal/command"
	"github.com/cascadekit/cascade/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

func startQueue(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = q.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestFIFOOrdering(t *testing.T) {
	q := New(0)
	startQueue(t, q)

	var (
		mu    sync.Mutex
		order []string
	)
	task := func(name string) Task {
		return Task{ID: name, Run: func(ctx context.Context) command.Outcome {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return command.Succeeded()
		}}
	}

	var last *Pending
	for _, name := range []string{"a", "b", "c", "d"} {
		p, err := q.Enqueue(task(name))
		require.NoError(t, err)
		last = p
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := last.Wait(ctx)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestStatusTransitions(t *testing.T) {
	q := New(0)
	startQueue(t, q)

	p, err := q.Enqueue(Task{ID: "ok", Run: func(ctx context.Context) command.Outcome {
		return command.Succeeded()
	}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	outcome, err := p.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, StatusSucceeded, p.Status())
}

func TestStatusForMapping(t *testing.T) {
	assert.Equal(t, StatusSucceeded, StatusFor(command.Succeeded()))
	assert.Equal(t, StatusFailed, StatusFor(command.Failed(errors.New("boom"))))
	assert.Equal(t, StatusSkipped, StatusFor(command.Failed(ErrSkipped)))
	assert.Equal(t, StatusTimedOut, StatusFor(command.Failed(context.DeadlineExceeded)))
}

func TestCapacityBound(t *testing.T) {
	q := New(2)
	// Not started: tasks stay queued.
	_, err := q.Enqueue(Task{ID: "1", Run: func(ctx context.Context) command.Outcome { return command.Succeeded() }})
	require.NoError(t, err)
	_, err = q.Enqueue(Task{ID: "2", Run: func(ctx context.Context) command.Outcome { return command.Succeeded() }})
	require.NoError(t, err)
	_, err = q.Enqueue(Task{ID: "3", Run: func(ctx context.Context) command.Outcome { return command.Succeeded() }})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 2, q.Depth())
}

func TestResetDropsQueuedWork(t *testing.T) {
	q := New(0)

	ran := false
	p, err := q.Enqueue(Task{ID: "never", Run: func(ctx context.Context) command.Outcome {
		ran = true
		return command.Succeeded()
	}})
	require.NoError(t, err)

	dropped := q.Reset()
	assert.Equal(t, 1, dropped)
	assert.Zero(t, q.Depth())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := p.Wait(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.ErrorIs(t, outcome.Err, ErrReset)
	assert.Equal(t, StatusSkipped, p.Status())
}

func TestWaitHonorsContext(t *testing.T) {
	q := New(0)
	// Queue never started, task never runs.
	p, err := q.Enqueue(Task{ID: "stuck", Run: func(ctx context.Context) command.Outcome {
		return command.Succeeded()
	}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
