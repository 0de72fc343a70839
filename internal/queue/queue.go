// Package queue serializes all command execution onto one worker. The
// single FIFO is the runtime's concurrency primitive: every activation,
// wherever it came from, runs to completion (chains included) before the
// next one starts.
package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cascadekit/cascade/internal/command"
	"github.com/cascadekit/cascade/internal/log"
)

// DefaultCapacity bounds the pending backlog when no capacity is given.
const DefaultCapacity = 1024

// Pending is the caller's handle on an enqueued task.
type Pending struct {
	task Task

	mu      sync.Mutex
	status  Status
	outcome command.Outcome
	done    chan struct{}
}

// Status returns the task's current queue status.
func (p *Pending) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Wait blocks until the task reaches a terminal state or ctx ends.
func (p *Pending) Wait(ctx context.Context) (command.Outcome, error) {
	select {
	case <-ctx.Done():
		return command.Outcome{}, ctx.Err()
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.outcome, nil
	}
}

func (p *Pending) finish(status Status, o command.Outcome) {
	p.mu.Lock()
	p.status = status
	p.outcome = o
	p.mu.Unlock()
	close(p.done)
}

// Queue is a capacity-bounded FIFO drained by Start's worker goroutine.
type Queue struct {
	mu       sync.Mutex
	waiting  []*Pending
	capacity int

	wake   chan struct{}
	logger *slog.Logger
}

// New creates a queue. capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		capacity: capacity,
		wake:     make(chan struct{}, 1),
		logger:   log.WithComponent("queue"),
	}
}

// Enqueue appends a task to the backlog.
func (q *Queue) Enqueue(t Task) (*Pending, error) {
	p := &Pending{
		task:   t,
		status: StatusQueued,
		done:   make(chan struct{}),
	}

	q.mu.Lock()
	if len(q.waiting) >= q.capacity {
		q.mu.Unlock()
		return nil, ErrQueueFull
	}
	q.waiting = append(q.waiting, p)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return p, nil
}

// Depth returns the number of queued-but-not-started tasks.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Reset drops every queued-but-not-started task, finishing each with a
// skipped status. The currently running task, if any, is unaffected.
func (q *Queue) Reset() int {
	q.mu.Lock()
	dropped := q.waiting
	q.waiting = nil
	q.mu.Unlock()

	for _, p := range dropped {
		p.finish(StatusSkipped, command.Failed(ErrReset))
	}
	return len(dropped)
}

// Start runs the drain loop until ctx is cancelled. Tasks execute
// strictly one at a time in enqueue order. This is a blocking call.
func (q *Queue) Start(ctx context.Context) error {
	q.logger.Info("execution queue started", "capacity", q.capacity)
	defer q.logger.Info("execution queue stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.wake:
		}
		q.drain(ctx)
	}
}

func (q *Queue) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p := q.pop()
		if p == nil {
			return
		}
		q.runOne(ctx, p)
	}
}

func (q *Queue) pop() *Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) == 0 {
		return nil
	}
	p := q.waiting[0]
	q.waiting = q.waiting[1:]
	return p
}

func (q *Queue) runOne(ctx context.Context, p *Pending) {
	p.mu.Lock()
	p.status = StatusRunning
	p.mu.Unlock()

	outcome := p.task.Run(ctx)
	status := StatusFor(outcome)

	if !outcome.Success {
		q.logger.Debug("task finished",
			"task_id", p.task.ID, "command", p.task.Command, "status", string(status))
	}
	p.finish(status, outcome)
}
