package command

import (
	"context"

	"github.com/cascadekit/cascade/internal/node"
)

// ExecRequest describes one follow-up execution requested by the chain
// walker or the pipeline engine.
type ExecRequest struct {
	// Command is the full command string to dispatch.
	Command string
	// TargetID resolves the target fresh at execution time.
	TargetID string
	// Source is the logical source node, nil or synthetic for
	// chain/pipeline-originated executions.
	Source *node.Node
	// Data is forwarded into the invocation's data bag.
	Data map[string]string
}

// ExecFunc runs one command inline on the current queue task and
// returns its outcome. The dispatcher provides the implementation.
type ExecFunc func(ctx context.Context, req ExecRequest) Outcome
