package command

import "fmt"

// Outcome is the result of one handler invocation. It is produced once
// per execution and consumed to select which chained commands fire.
type Outcome struct {
	Success bool
	Err     error
}

// Succeeded is the outcome of a handler that returned nil.
func Succeeded() Outcome { return Outcome{Success: true} }

// Failed wraps a handler error into a failure outcome.
func Failed(err error) Outcome { return Outcome{Success: false, Err: err} }

// Condition gates a chained command on the previous outcome.
type Condition string

const (
	ConditionAlways   Condition = "always"
	ConditionSuccess  Condition = "success"
	ConditionError    Condition = "error"
	ConditionComplete Condition = "complete"
)

// ParseCondition parses a condition attribute. Empty means always.
func ParseCondition(s string) (Condition, error) {
	switch Condition(s) {
	case "":
		return ConditionAlways, nil
	case ConditionAlways, ConditionSuccess, ConditionError, ConditionComplete:
		return Condition(s), nil
	}
	return "", fmt.Errorf("unknown condition %q", s)
}

// Matches reports whether the condition selects for the given outcome.
// "complete" fires on either outcome, same as "always".
func (c Condition) Matches(o Outcome) bool {
	switch c {
	case ConditionSuccess:
		return o.Success
	case ConditionError:
		return !o.Success
	default:
		return true
	}
}
