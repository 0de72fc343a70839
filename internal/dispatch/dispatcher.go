// Package dispatch ties the runtime together: it resolves command
// strings against the registry, gates them on lifecycle state, runs
// handlers with a timeout on the execution queue, journals the result,
// and fires attribute chains and continuation nodes off the outcome.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cascadekit/cascade/internal/chain"
	"github.com/cascadekit/cascade/internal/command"
	"github.com/cascadekit/cascade/internal/diag"
	"github.com/cascadekit/cascade/internal/events"
	"github.com/cascadekit/cascade/internal/journal"
	"github.com/cascadekit/cascade/internal/log"
	"github.com/cascadekit/cascade/internal/node"
	"github.com/cascadekit/cascade/internal/queue"
	"github.com/cascadekit/cascade/internal/state"
)

// AttrInitialState declares the initial lifecycle of a (command, target)
// pair on the target node.
const AttrInitialState = "command-state"

// DefaultHandlerTimeout bounds a single handler invocation.
const DefaultHandlerTimeout = 30 * time.Second

// Options configures a Dispatcher. Registry, States, Document and Queue
// are required; the rest may be nil/zero.
type Options struct {
	Registry *command.Registry
	States   *state.Store
	Document *node.Document
	Queue    *queue.Queue

	Journal  *journal.Journal // nil disables journaling
	Hub      *events.Hub      // nil disables event publishing
	Reporter *diag.Reporter

	HandlerTimeout time.Duration
	MaxChainDepth  int
	RatePerSecond  int
}

// Dispatcher executes command activations.
type Dispatcher struct {
	registry *command.Registry
	states   *state.Store
	doc      *node.Document
	queue    *queue.Queue
	journal  *journal.Journal
	hub      *events.Hub
	reporter *diag.Reporter
	rate     *diag.RateMonitor
	walker   *chain.Walker
	timeout  time.Duration
	logger   *slog.Logger
}

// New builds a dispatcher from opts.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		registry: opts.Registry,
		states:   opts.States,
		doc:      opts.Document,
		queue:    opts.Queue,
		journal:  opts.Journal,
		hub:      opts.Hub,
		reporter: opts.Reporter,
		rate:     diag.NewRateMonitor(opts.RatePerSecond),
		timeout:  opts.HandlerTimeout,
		logger:   log.WithComponent("dispatch"),
	}
	if d.timeout <= 0 {
		d.timeout = DefaultHandlerTimeout
	}
	d.walker = chain.NewWalker(d.InlineExec(queue.OriginChain), opts.Reporter, opts.MaxChainDepth)
	return d
}

// Request is one externally triggered activation.
type Request struct {
	// Command is the full command string.
	Command string
	// TargetID names the node the command acts on.
	TargetID string
	// SourceID optionally names the activating node; its chain
	// attributes and continuation children fire off the outcome.
	SourceID string
}

// Execute queues an activation. An unknown command is rejected here,
// before anything is enqueued, with a single suggestion-bearing
// diagnostic. The returned Pending resolves when the activation and its
// whole chain have run.
func (d *Dispatcher) Execute(req Request) (*queue.Pending, error) {
	if _, ok := d.registry.Resolve(req.Command); !ok {
		diagErr := d.unknownCommand(req.Command)
		return nil, diagErr
	}

	t := queue.Task{
		ID:       uuid.NewString(),
		Command:  req.Command,
		TargetID: req.TargetID,
		Origin:   queue.OriginActivation,
		Run: func(ctx context.Context) command.Outcome {
			var source *node.Node
			if req.SourceID != "" {
				source, _ = d.doc.Lookup(req.SourceID)
			}
			return d.run(ctx, queue.OriginActivation, command.ExecRequest{
				Command:  req.Command,
				TargetID: req.TargetID,
				Source:   source,
			})
		},
	}
	return d.queue.Enqueue(t)
}

// InlineExec returns the execution path chain and pipeline code use to
// run follow-up commands on the current queue task.
func (d *Dispatcher) InlineExec(origin queue.Origin) command.ExecFunc {
	return func(ctx context.Context, req command.ExecRequest) command.Outcome {
		return d.run(ctx, origin, req)
	}
}

// Reset drops pending queue work, clears lifecycle state, and removes
// embedder command registrations (builtin commands stay registered).
func (d *Dispatcher) Reset() int {
	dropped := d.queue.Reset()
	d.states.Reset()
	d.registry.Reset()
	if d.hub != nil {
		d.hub.Publish(events.TypeQueueReset, map[string]int{"dropped": dropped})
	}
	d.logger.Info("runtime reset", "dropped", dropped)
	return dropped
}

// executionRecord is the payload of execution.* events.
type executionRecord struct {
	ID       string       `json:"id"`
	Command  string       `json:"command"`
	Target   string       `json:"target"`
	Origin   queue.Origin `json:"origin"`
	Status   queue.Status `json:"status,omitempty"`
	Error    string       `json:"error,omitempty"`
	Duration string       `json:"duration,omitempty"`
}

// run executes one command synchronously: resolve, validate the target,
// gate on lifecycle, invoke the handler under the timeout, record, then
// fire chains against the outcome. Chained work runs inline here, so a
// queued activation does not start until this one's chain tree is done.
func (d *Dispatcher) run(ctx context.Context, origin queue.Origin, req command.ExecRequest) command.Outcome {
	execID := uuid.NewString()
	logger := d.logger.With("execution_id", execID, "command", req.Command, "origin", string(origin))

	if !d.rate.Allow() {
		diagErr := diag.Critical("execution rate limit tripped, likely a runaway chain").
			WithCommand(req.Command).WithTarget(req.TargetID)
		d.report(diagErr)
		return command.Failed(diagErr)
	}

	match, ok := d.registry.Resolve(req.Command)
	if !ok {
		return command.Failed(d.unknownCommand(req.Command))
	}

	target, ok := d.doc.Lookup(req.TargetID)
	if !ok || !target.Connected() {
		diagErr := diag.Error("target is missing or no longer connected").
			WithCommand(req.Command).WithTarget(req.TargetID)
		d.report(diagErr)
		return command.Failed(diagErr)
	}

	// The target may declare an initial lifecycle; it seeds the pair's
	// state only when none is recorded yet.
	if declared, ok := target.Attr(AttrInitialState); ok {
		if lc, err := state.Parse(declared); err == nil {
			d.states.Seed(req.Command, req.TargetID, lc)
		} else {
			d.report(diag.Warning("invalid declared command state").
				WithCommand(req.Command).WithTarget(req.TargetID).WithCause(err))
		}
	}

	lc := d.states.Get(req.Command, req.TargetID)
	if lc == state.Disabled || lc == state.Completed {
		logger.Debug("execution gated", "lifecycle", string(lc))
		outcome := command.Failed(queue.ErrSkipped)
		d.record(ctx, execID, origin, req, time.Now(), time.Now(), outcome)
		return outcome
	}

	started := time.Now()
	d.publish(events.TypeExecutionStarted, executionRecord{
		ID: execID, Command: req.Command, Target: req.TargetID, Origin: origin,
	})

	inv := (&command.Invocation{
		Source:  req.Source,
		Target:  target,
		Command: req.Command,
		Args:    match.Args,
		Data:    req.Data,
	}).WithCapabilities(d.doc.Lookup, d.schedule)

	outcome := d.invoke(ctx, match.Handler, inv)
	completed := time.Now()

	if outcome.Success && lc == state.Once {
		d.states.Complete(req.Command, req.TargetID)
	}
	if !outcome.Success {
		logger.Warn("execution failed",
			"error", outcome.Err, "duration", completed.Sub(started).String())
	}
	d.record(ctx, execID, origin, req, started, completed, outcome)

	// Both chain forms read the source fresh each time; chained and
	// pipeline executions carry no chainable source, which keeps
	// attribute chains from recursing unboundedly.
	descs := chain.Resolve(req.Source, req.TargetID, d.reporter)
	chain.RunDescriptors(ctx, descs, outcome, d.InlineExec(queue.OriginChain))
	d.walker.Walk(ctx, req.Source, req.TargetID, outcome)

	return outcome
}

// invoke runs the handler in its own goroutine so a stuck handler
// cannot wedge the queue past the deadline.
func (d *Dispatcher) invoke(ctx context.Context, h command.Handler, inv *command.Invocation) command.Outcome {
	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- h(runCtx, inv)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-runCtx.Done():
		err = runCtx.Err()
	}
	if err != nil {
		return command.Failed(err)
	}
	return command.Succeeded()
}

// schedule is the capability handlers use to queue a fresh activation
// after the current task finishes.
func (d *Dispatcher) schedule(commandStr, targetID string) {
	t := queue.Task{
		ID:       uuid.NewString(),
		Command:  commandStr,
		TargetID: targetID,
		Origin:   queue.OriginChain,
		Run: func(ctx context.Context) command.Outcome {
			return d.run(ctx, queue.OriginChain, command.ExecRequest{
				Command:  commandStr,
				TargetID: targetID,
			})
		},
	}
	if _, err := d.queue.Enqueue(t); err != nil {
		d.report(diag.Error("scheduled follow-up rejected").
			WithCommand(commandStr).WithTarget(targetID).WithCause(err))
	}
}

func (d *Dispatcher) unknownCommand(cmd string) *diag.Diagnostic {
	diagErr := diag.Error("unknown command").
		WithCommand(cmd).
		WithSuggestions(diag.Suggest(cmd, d.registry.Prefixes()))
	d.report(diagErr)
	return diagErr
}

func (d *Dispatcher) record(ctx context.Context, execID string, origin queue.Origin, req command.ExecRequest, started, completed time.Time, outcome command.Outcome) {
	status := queue.StatusFor(outcome)

	if d.journal != nil {
		e := journal.Entry{
			ID:          execID,
			Command:     req.Command,
			Target:      req.TargetID,
			Origin:      origin,
			Status:      status,
			StartedAt:   started,
			CompletedAt: completed,
			Duration:    completed.Sub(started),
		}
		if req.Source != nil {
			e.Source = req.Source.ID()
		}
		if outcome.Err != nil {
			e.Error = outcome.Err.Error()
		}
		if err := d.journal.Record(ctx, e); err != nil {
			d.logger.Warn("journal write failed", "error", err)
		}
	}

	rec := executionRecord{
		ID: execID, Command: req.Command, Target: req.TargetID,
		Origin: origin, Status: status,
		Duration: completed.Sub(started).String(),
	}
	if outcome.Err != nil {
		rec.Error = outcome.Err.Error()
	}
	d.publish(events.TypeExecutionCompleted, rec)
}

func (d *Dispatcher) publish(eventType string, data any) {
	if d.hub != nil {
		d.hub.Publish(eventType, data)
	}
}

func (d *Dispatcher) report(diagErr *diag.Diagnostic) {
	if d.reporter != nil {
		d.reporter.Report(diagErr)
	}
}
