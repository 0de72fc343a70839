package queue

import (
	"context"
	"errors"

	"github.com/cascadekit/cascade/internal/command"
)

// Status is the queue-level state of one execution task.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusSkipped   Status = "skipped"
)

// Origin records where an execution came from.
type Origin string

const (
	OriginActivation Origin = "activation"
	OriginChain      Origin = "chain"
	OriginPipeline   Origin = "pipeline"
)

var (
	// ErrSkipped marks an execution aborted by the lifecycle gate
	// before its handler ran. No side effect, no chaining.
	ErrSkipped = errors.New("execution skipped by lifecycle state")
	// ErrReset marks a queued task dropped by an explicit reset.
	ErrReset = errors.New("queued execution dropped by reset")
	// ErrQueueFull is returned when the pending backlog is at capacity.
	ErrQueueFull = errors.New("execution queue is full")
)

// Task is one unit of queued work: a top-level activation including its
// entire chain and pipeline fan-out, which runs inline inside Run.
type Task struct {
	ID       string
	Command  string
	TargetID string
	Origin   Origin
	Run      func(ctx context.Context) command.Outcome
}

// StatusFor maps an outcome to its terminal queue status.
func StatusFor(o command.Outcome) Status {
	switch {
	case o.Success:
		return StatusSucceeded
	case errors.Is(o.Err, ErrSkipped), errors.Is(o.Err, ErrReset):
		return StatusSkipped
	case errors.Is(o.Err, context.DeadlineExceeded):
		return StatusTimedOut
	default:
		return StatusFailed
	}
}
