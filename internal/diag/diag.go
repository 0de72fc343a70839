// Package diag builds structured diagnostics for the command runtime:
// classified errors, typo suggestions for unknown commands, and a rate
// guard that contains runaway chains.
package diag

import (
	"fmt"
	"log/slog"
	"strings"
)

// Severity classifies how a diagnostic is surfaced.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Diagnostic is a structured runtime error. It satisfies the error
// interface so it can flow through normal error returns.
type Diagnostic struct {
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Command     string   `json:"command,omitempty"`
	TargetRef   string   `json:"target_ref,omitempty"`
	Cause       error    `json:"-"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(d.Message)
	if d.Command != "" {
		fmt.Fprintf(&b, " (command %q)", d.Command)
	}
	if d.Cause != nil {
		fmt.Fprintf(&b, ": %v", d.Cause)
	}
	return b.String()
}

func (d *Diagnostic) Unwrap() error { return d.Cause }

// Warning builds a warning-severity diagnostic.
func Warning(msg string) *Diagnostic {
	return &Diagnostic{Message: msg, Severity: SeverityWarning}
}

// Error builds an error-severity diagnostic.
func Error(msg string) *Diagnostic {
	return &Diagnostic{Message: msg, Severity: SeverityError}
}

// Critical builds a critical-severity diagnostic.
func Critical(msg string) *Diagnostic {
	return &Diagnostic{Message: msg, Severity: SeverityCritical}
}

// WithCommand attaches the offending command string.
func (d *Diagnostic) WithCommand(cmd string) *Diagnostic {
	d.Command = cmd
	return d
}

// WithTarget attaches the target reference.
func (d *Diagnostic) WithTarget(ref string) *Diagnostic {
	d.TargetRef = ref
	return d
}

// WithCause attaches an underlying error.
func (d *Diagnostic) WithCause(err error) *Diagnostic {
	d.Cause = err
	return d
}

// WithSuggestions attaches recovery suggestions.
func (d *Diagnostic) WithSuggestions(s []string) *Diagnostic {
	d.Suggestions = s
	return d
}

// Publisher receives diagnostics as events. *events.Hub satisfies it.
type Publisher interface {
	Publish(eventType string, data any)
}

// Reporter routes diagnostics to the log and the event stream. Warnings
// are only surfaced when debug is on; errors and criticals always are.
type Reporter struct {
	logger *slog.Logger
	pub    Publisher
	debug  bool
}

// NewReporter creates a Reporter. pub may be nil.
func NewReporter(logger *slog.Logger, pub Publisher, debug bool) *Reporter {
	return &Reporter{logger: logger, pub: pub, debug: debug}
}

// Report surfaces one diagnostic according to its severity.
func (r *Reporter) Report(d *Diagnostic) {
	if r == nil || d == nil {
		return
	}
	attrs := []any{"severity", string(d.Severity)}
	if d.Command != "" {
		attrs = append(attrs, "command", d.Command)
	}
	if d.TargetRef != "" {
		attrs = append(attrs, "target", d.TargetRef)
	}
	if d.Cause != nil {
		attrs = append(attrs, "cause", d.Cause.Error())
	}
	if len(d.Suggestions) > 0 {
		attrs = append(attrs, "suggestions", strings.Join(d.Suggestions, ", "))
	}

	switch d.Severity {
	case SeverityWarning:
		if !r.debug {
			return
		}
		r.logger.Warn(d.Message, attrs...)
	case SeverityCritical:
		r.logger.Error(d.Message, attrs...)
	default:
		r.logger.Error(d.Message, attrs...)
	}

	if r.pub != nil {
		r.pub.Publish("diagnostic", d)
	}
}
