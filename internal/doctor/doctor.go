// Package doctor validates a cascade deployment before it serves:
// runtime configuration, the node document's chain declarations, and
// the pipeline template directory.
package doctor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cascadekit/cascade/internal/chain"
	"github.com/cascadekit/cascade/internal/command"
	"github.com/cascadekit/cascade/internal/config"
	"github.com/cascadekit/cascade/internal/diag"
	"github.com/cascadekit/cascade/internal/dispatch"
	"github.com/cascadekit/cascade/internal/node"
	"github.com/cascadekit/cascade/internal/pipeline"
	"github.com/cascadekit/cascade/internal/state"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration, document, and templates against the
// command prefixes the runtime will register.
type Doctor struct {
	cfg       *config.Config
	doc       *node.Document
	templates *pipeline.Store
	prefixes  []string
}

// New creates a Doctor. doc and templates may be nil when only the
// config should be checked.
func New(cfg *config.Config, doc *node.Document, templates *pipeline.Store, prefixes []string) *Doctor {
	return &Doctor{cfg: cfg, doc: doc, templates: templates, prefixes: prefixes}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{}

	d.validateRuntime(r)
	d.validateAPI(r)
	d.validateTemplates(r)
	d.validateDocument(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateRuntime(r *Result) {
	rt := d.cfg.Runtime
	if rt.HandlerTimeout <= 0 {
		d.addError(r, "runtime", "runtime.handler_timeout", "handler_timeout must be positive")
	}
	if rt.MaxChainDepth <= 0 {
		d.addError(r, "runtime", "runtime.max_chain_depth", "max_chain_depth must be positive")
	}
	if rt.QueueCapacity <= 0 {
		d.addError(r, "runtime", "runtime.queue_capacity", "queue_capacity must be positive")
	}
	if rt.RatePerSecond < 0 {
		d.addError(r, "runtime", "runtime.rate_per_second", "rate_per_second cannot be negative")
	}
	if rt.RatePerSecond == 0 {
		d.addWarning(r, "runtime", "runtime.rate_per_second",
			"rate guard disabled; runaway chains will not be contained")
	}
}

func (d *Doctor) validateAPI(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "listen address is required when api is enabled")
	}
	if d.cfg.API.APIKey == "" {
		d.addWarning(r, "api", "api.api_key",
			"api enabled without an api_key; every authenticated request will be rejected")
	}
}

func (d *Doctor) validateTemplates(r *Result) {
	if d.templates == nil {
		return
	}
	for _, t := range d.templates.All() {
		for i, step := range t.Steps {
			field := fmt.Sprintf("templates.%s.steps[%d]", t.Name, i)
			d.checkCommand(r, "template", field, step.Command)
			d.checkTarget(r, "template", field, step.Target)
			if step.Delay > 5*time.Minute {
				d.addWarning(r, "template", field,
					fmt.Sprintf("step delay %s is unusually long", step.Delay))
			}
		}
	}
}

func (d *Doctor) validateDocument(r *Result) {
	if d.doc == nil {
		return
	}
	d.validateNode(r, d.doc.Root())
}

func (d *Doctor) validateNode(r *Result, n *node.Node) {
	field := nodeField(n)

	if declared, ok := n.Attr(dispatch.AttrInitialState); ok {
		if _, err := state.Parse(declared); err != nil {
			d.addError(r, "document", field, err.Error())
		}
	}

	for _, attr := range []string{
		chain.AttrAndThen, chain.AttrAfterSuccess, chain.AttrAfterError, chain.AttrAfterComplete,
	} {
		raw, ok := n.Attr(attr)
		if !ok {
			continue
		}
		for _, cmd := range command.SplitList(raw) {
			d.checkCommand(r, "document", field+"@"+attr, cmd)
		}
		if n.ID() == "" && n.AttrOr(chain.AttrThenTarget, "") == "" {
			d.addWarning(r, "document", field+"@"+attr,
				"chain declared on a node with no id and no then-target; descriptors will be dropped")
		}
	}
	if tt, ok := n.Attr(chain.AttrThenTarget); ok {
		d.checkTarget(r, "document", field+"@"+chain.AttrThenTarget, tt)
	}

	if n.Name() == chain.NodeContinuation {
		d.validateContinuation(r, n, field)
	}

	for _, c := range n.Children() {
		d.validateNode(r, c)
	}
}

func (d *Doctor) validateContinuation(r *Result, n *node.Node, field string) {
	cmd, ok := n.Attr(chain.AttrCommand)
	if !ok || cmd == "" {
		d.addError(r, "document", field, "continuation node has no command")
	} else {
		d.checkCommand(r, "document", field, cmd)
	}
	if _, err := command.ParseCondition(n.AttrOr(chain.AttrCondition, "")); err != nil {
		d.addError(r, "document", field+"@"+chain.AttrCondition, err.Error())
	}
	if target, ok := n.Attr(chain.AttrTarget); ok {
		d.checkTarget(r, "document", field+"@"+chain.AttrTarget, target)
	}
}

// checkCommand warns when a declared command matches no known prefix,
// attaching closest-prefix suggestions.
func (d *Doctor) checkCommand(r *Result, category, field, cmd string) {
	if len(d.prefixes) == 0 || cmd == "" {
		return
	}
	tokens := command.Split(cmd)
	for _, p := range d.prefixes {
		pt := command.Split(p)
		if len(pt) <= len(tokens) && tokensMatch(pt, tokens[:len(pt)]) {
			return
		}
	}
	msg := fmt.Sprintf("command %q matches no known prefix", cmd)
	if s := diag.Suggest(cmd, d.prefixes); len(s) > 0 {
		msg += "; did you mean " + strings.Join(s, ", ")
	}
	d.addWarning(r, category, field, msg)
}

func (d *Doctor) checkTarget(r *Result, category, field, targetID string) {
	if d.doc == nil || targetID == "" {
		return
	}
	if _, ok := d.doc.Lookup(targetID); !ok {
		d.addWarning(r, category, field,
			fmt.Sprintf("target %q is not in the document", targetID))
	}
}

func tokensMatch(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func nodeField(n *node.Node) string {
	if n.ID() != "" {
		return n.Name() + "#" + n.ID()
	}
	return n.Name()
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Configuration valid.\n")
		return b.String()
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n",
			len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
