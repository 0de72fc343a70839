package command

import (
	"context"

	"github.com/cascadekit/cascade/internal/node"
)

// Handler is the leaf command contract. It may block; the dispatcher
// bounds it with ctx. Returning an error (or overrunning the deadline)
// marks the execution's outcome as failed. Handlers must not assume a
// source exists: chain- and pipeline-originated invocations carry nil.
type Handler func(ctx context.Context, inv *Invocation) error

// Invocation is the per-activation execution context handed to handlers.
// It exposes capability functions instead of tree traversal so handlers
// stay decoupled from document internals.
type Invocation struct {
	// Source is the activating node, nil for chain/pipeline-originated
	// executions.
	Source *node.Node
	// Target is the node the command acts on, resolved fresh at
	// execution time.
	Target *node.Node
	// Command is the full command string that matched.
	Command string
	// Args are the tokens remaining after the registered prefix.
	Args []string
	// Data is the open key/value bag forwarded verbatim from pipeline
	// step definitions. Nil outside pipelines.
	Data map[string]string

	resolve  func(id string) (*node.Node, bool)
	schedule func(commandStr, targetID string)
}

// WithCapabilities attaches the dispatcher-provided capability functions.
func (inv *Invocation) WithCapabilities(
	resolve func(id string) (*node.Node, bool),
	schedule func(commandStr, targetID string),
) *Invocation {
	inv.resolve = resolve
	inv.schedule = schedule
	return inv
}

// ResolveTarget looks up a live node by identifier.
func (inv *Invocation) ResolveTarget(id string) (*node.Node, bool) {
	if inv.resolve == nil {
		return nil, false
	}
	return inv.resolve(id)
}

// ScheduleFollowUp enqueues another command activation after the current
// queue task completes. It never executes inline.
func (inv *Invocation) ScheduleFollowUp(commandStr, targetID string) {
	if inv.schedule != nil {
		inv.schedule(commandStr, targetID)
	}
}
