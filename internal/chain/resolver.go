// Package chain turns a finished execution's outcome into follow-up
// executions: attribute-declared command lists on the source, and nested
// continuation nodes walked declaratively.
package chain

import (
	"context"
	"time"

	"github.com/cascadekit/cascade/internal/command"
	"github.com/cascadekit/cascade/internal/diag"
	"github.com/cascadekit/cascade/internal/node"
)

// Attribute names on source nodes.
const (
	AttrAndThen       = "and-then"
	AttrAfterSuccess  = "after-success"
	AttrAfterError    = "after-error"
	AttrAfterComplete = "after-complete"
	AttrThenTarget    = "then-target"
	AttrState         = "state"
)

// Continuation node surface.
const (
	NodeContinuation = "and-then"
	AttrCommand      = "command"
	AttrTarget       = "target"
	AttrCondition    = "condition"
	AttrDelay        = "delay"
	AttrOnce         = "once"
)

// Descriptor is one scheduled follow-up command. Descriptors are derived
// fresh from current node state on every execution, never cached.
type Descriptor struct {
	Command   string
	TargetID  string
	Condition command.Condition
	Delay     time.Duration
	Once      bool
}

// attrConditions fixes the evaluation order of the four chain lists.
var attrConditions = []struct {
	attr string
	cond command.Condition
}{
	{AttrAndThen, command.ConditionAlways},
	{AttrAfterSuccess, command.ConditionSuccess},
	{AttrAfterError, command.ConditionError},
	{AttrAfterComplete, command.ConditionComplete},
}

// Resolve reads the attribute-declared chain lists off source and builds
// descriptors in declaration order. defaultTargetID is the id of the
// node the just-finished command targeted; a per-source override comes
// from the then-target attribute. A missing target id drops the
// descriptor with a warning.
func Resolve(source *node.Node, defaultTargetID string, reporter *diag.Reporter) []Descriptor {
	if source == nil {
		return nil
	}

	targetID := source.AttrOr(AttrThenTarget, defaultTargetID)

	var out []Descriptor
	for _, ac := range attrConditions {
		raw, ok := source.Attr(ac.attr)
		if !ok {
			continue
		}
		for _, cmd := range command.SplitList(raw) {
			if targetID == "" {
				if reporter != nil {
					reporter.Report(diag.Warning("chained command has no stable target id").
						WithCommand(cmd))
				}
				continue
			}
			out = append(out, Descriptor{
				Command:   cmd,
				TargetID:  targetID,
				Condition: ac.cond,
			})
		}
	}
	return out
}

// RunDescriptors executes the descriptors whose condition matches the
// outcome, in order, on the current queue task. Outcomes of chained
// commands are independent of each other.
func RunDescriptors(ctx context.Context, descs []Descriptor, outcome command.Outcome, exec command.ExecFunc) {
	for _, d := range descs {
		if !d.Condition.Matches(outcome) {
			continue
		}
		if d.Delay > 0 {
			if err := sleep(ctx, d.Delay); err != nil {
				return
			}
		}
		exec(ctx, command.ExecRequest{Command: d.Command, TargetID: d.TargetID})
	}
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
