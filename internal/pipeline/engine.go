// Package pipeline executes named multi-step templates: ordered step
// lists with per-step conditions, delays, and one-shot flags.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cascadekit/cascade/internal/command"
	"github.com/cascadekit/cascade/internal/log"
	"github.com/cascadekit/cascade/internal/node"
)

// ErrUnknownTemplate is returned when Run is given an unregistered name.
var ErrUnknownTemplate = fmt.Errorf("unknown pipeline template")

// Engine walks the step list of a template, dispatching each selected
// step inline on the owning queue task.
type Engine struct {
	store  *Store
	exec   command.ExecFunc
	logger *slog.Logger
}

// NewEngine creates an engine over the given store. exec is the
// dispatcher's inline execution path.
func NewEngine(store *Store, exec command.ExecFunc) *Engine {
	return &Engine{
		store:  store,
		exec:   exec,
		logger: log.WithComponent("pipeline"),
	}
}

// Store exposes the engine's template store.
func (e *Engine) Store() *Store { return e.store }

// Run executes the named template sequentially. Each step's condition is
// checked against the previous step's outcome (the run starts from a
// success). A failing step stops the run early unless a later step is
// error-gated. One-shot steps are deleted from the definition after
// they execute. The returned outcome is the last executed step's.
func (e *Engine) Run(ctx context.Context, name string) (command.Outcome, error) {
	t, ok := e.store.Snapshot(name)
	if !ok {
		return command.Outcome{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}

	e.logger.Debug("pipeline run starting",
		"template", name, "steps", len(t.Steps), "fingerprint", t.Fingerprint)

	prev := command.Succeeded()
	var executedOnce []int

	for i, step := range t.Steps {
		if !step.Condition.Matches(prev) {
			continue
		}
		if step.Delay > 0 {
			if err := sleep(ctx, step.Delay); err != nil {
				return command.Failed(err), nil
			}
		}

		src := node.New("pipeline-step", "", map[string]string{
			"template": name,
			"step":     strconv.Itoa(i),
		})
		out := e.exec(ctx, command.ExecRequest{
			Command:  step.Command,
			TargetID: step.Target,
			Source:   src,
			Data:     step.Data,
		})
		if step.Once {
			executedOnce = append(executedOnce, i)
		}
		prev = out

		if !out.Success && !errorGatedAfter(t.Steps, i) {
			e.logger.Debug("pipeline stopping early",
				"template", name, "failed_step", i)
			break
		}
	}

	e.store.RemoveSteps(name, executedOnce)
	return prev, nil
}

// errorGatedAfter reports whether any step past index i reacts to an
// error outcome. When none does, a failure is terminal for the run.
func errorGatedAfter(steps []Step, i int) bool {
	for _, s := range steps[i+1:] {
		if s.Condition == command.ConditionError {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Handler returns the command handler backing "--pipeline:run:<name>".
func Handler(e *Engine) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) error {
		if len(inv.Args) == 0 || inv.Args[0] == "" {
			return fmt.Errorf("pipeline run requires a template name")
		}
		out, err := e.Run(ctx, inv.Args[0])
		if err != nil {
			return err
		}
		if !out.Success {
			return fmt.Errorf("pipeline %q failed: %w", inv.Args[0], out.Err)
		}
		return nil
	}
}
