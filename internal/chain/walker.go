package chain

import (
	"context"

	"github.com/cascadekit/cascade/internal/command"
	"github.com/cascadekit/cascade/internal/diag"
	"github.com/cascadekit/cascade/internal/node"
)

// Lifecycle attribute values recognized on continuation nodes.
const (
	stateDisabled  = "disabled"
	stateCompleted = "completed"
	stateOnce      = "once"
)

// DefaultMaxDepth bounds nested continuation levels per activation.
const DefaultMaxDepth = 10

// Walker executes and-then continuation nodes declared as children of a
// source node. Nodes are re-scanned on every walk, so continuations
// added between activations are picked up.
type Walker struct {
	exec     command.ExecFunc
	reporter *diag.Reporter
	maxDepth int
}

func NewWalker(exec command.ExecFunc, reporter *diag.Reporter, maxDepth int) *Walker {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Walker{exec: exec, reporter: reporter, maxDepth: maxDepth}
}

// item is one pending scan of a node's direct continuation children.
// outcome is the result of the step that level follows.
type item struct {
	cont    *node.Node
	outcome command.Outcome
	depth   int
}

// Walk runs the continuation children of source against the activation
// outcome. Each executed continuation's own children are walked one
// level deeper with the outcome that execution produced. Uses an
// explicit worklist so deeply nested documents cannot blow the stack.
func (w *Walker) Walk(ctx context.Context, source *node.Node, defaultTargetID string, outcome command.Outcome) {
	if source == nil {
		return
	}

	stack := w.pushChildren(nil, source, outcome, 1)
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if ctx.Err() != nil {
			return
		}
		if it.depth > w.maxDepth {
			w.warn(diag.Warning("continuation depth cap reached, skipping deeper nodes").
				WithTarget(it.cont.ID()))
			continue
		}

		next, ran := w.runOne(ctx, it.cont, defaultTargetID, it.outcome)
		if !ran {
			continue
		}
		stack = w.pushChildren(stack, it.cont, next, it.depth+1)
	}
}

// pushChildren appends parent's continuation children in reverse so the
// LIFO worklist pops them in document order.
func (w *Walker) pushChildren(stack []item, parent *node.Node, outcome command.Outcome, depth int) []item {
	conts := parent.ChildrenNamed(NodeContinuation)
	for i := len(conts) - 1; i >= 0; i-- {
		stack = append(stack, item{cont: conts[i], outcome: outcome, depth: depth})
	}
	return stack
}

// runOne evaluates a single continuation node. It reports whether the
// node executed and, if so, the outcome its command produced.
func (w *Walker) runOne(ctx context.Context, cont *node.Node, defaultTargetID string, prev command.Outcome) (command.Outcome, bool) {
	switch cont.AttrOr(AttrState, "") {
	case stateDisabled, stateCompleted:
		return command.Outcome{}, false
	}

	cond, err := command.ParseCondition(cont.AttrOr(AttrCondition, ""))
	if err != nil {
		w.warn(diag.Warning("continuation node has invalid condition").
			WithTarget(cont.ID()).WithCause(err))
		return command.Outcome{}, false
	}
	if !cond.Matches(prev) {
		return command.Outcome{}, false
	}

	cmd, ok := cont.Attr(AttrCommand)
	if !ok || cmd == "" {
		w.warn(diag.Warning("continuation node has no command").WithTarget(cont.ID()))
		return command.Outcome{}, false
	}
	targetID := cont.AttrOr(AttrTarget, defaultTargetID)
	if targetID == "" {
		w.warn(diag.Warning("continuation node has no target").WithCommand(cmd))
		return command.Outcome{}, false
	}

	if delay := cont.AttrDuration(AttrDelay); delay > 0 {
		if err := sleep(ctx, delay); err != nil {
			return command.Outcome{}, false
		}
	}

	out := w.exec(ctx, command.ExecRequest{Command: cmd, TargetID: targetID})

	if cont.AttrBool(AttrOnce) {
		cont.Detach()
	} else if cont.AttrOr(AttrState, "") == stateOnce {
		cont.SetAttr(AttrState, stateCompleted)
	}
	return out, true
}

func (w *Walker) warn(d *diag.Diagnostic) {
	if w.reporter != nil {
		w.reporter.Report(d)
	}
}
