package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cascadekit/cascade/internal/diag"
)

// Marker prefixes every custom command, keeping the namespace clear of
// the native vocabulary.
const Marker = "--"

// reservedNames is the native command vocabulary. These belong to the
// host layer and can never be claimed by a custom handler.
var reservedNames = map[string]struct{}{
	"toggle":         {},
	"show":           {},
	"hide":           {},
	"close":          {},
	"request-close":  {},
	"show-modal":     {},
	"show-popover":   {},
	"hide-popover":   {},
	"toggle-popover": {},
}

// ErrReservedPrefix is returned when a registration collides with the
// native vocabulary.
var ErrReservedPrefix = fmt.Errorf("prefix collides with reserved native command")

type registration struct {
	prefix  string
	tokens  []string
	handler Handler
	builtin bool
}

// Match is a successful registry resolution.
type Match struct {
	// Prefix is the registered prefix that won.
	Prefix string
	// Handler is the registered handler.
	Handler Handler
	// Args are the command tokens remaining after the prefix.
	Args []string
}

// Registry stores handlers keyed by normalized command prefixes and
// resolves incoming command strings to the longest matching prefix.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*registration
	ordered  []*registration // longest token run first
	reporter *diag.Reporter
}

// NewRegistry creates an empty registry. reporter may be nil.
func NewRegistry(reporter *diag.Reporter) *Registry {
	return &Registry{
		entries:  make(map[string]*registration),
		reporter: reporter,
	}
}

// Register stores a handler under prefix. The prefix is normalized to
// start with the marker (with a warning when it was missing). Reserved
// native names are rejected. Re-registering an existing prefix
// overwrites the old handler with a warning rather than failing.
func (r *Registry) Register(prefix string, h Handler) error {
	return r.register(prefix, h, false)
}

// RegisterBuiltin stores a runtime-owned handler that survives Reset.
// Used for commands the runtime itself provides, not for embedder
// registrations.
func (r *Registry) RegisterBuiltin(prefix string, h Handler) error {
	return r.register(prefix, h, true)
}

func (r *Registry) register(prefix string, h Handler, builtin bool) error {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return fmt.Errorf("empty command prefix")
	}
	if h == nil {
		return fmt.Errorf("nil handler for prefix %q", prefix)
	}

	if !strings.HasPrefix(prefix, Marker) {
		if _, reserved := reservedNames[Split(prefix)[0]]; reserved {
			d := diag.Error("refusing to register reserved native command").
				WithCommand(prefix).
				WithCause(ErrReservedPrefix)
			r.report(d)
			return d
		}
		r.report(diag.Warning("command prefix missing marker, auto-prepending").
			WithCommand(prefix))
		prefix = Marker + prefix
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[prefix]; exists {
		r.report(diag.Warning("overwriting existing command registration").
			WithCommand(prefix))
	}
	r.entries[prefix] = &registration{
		prefix:  prefix,
		tokens:  Split(prefix),
		handler: h,
		builtin: builtin,
	}
	r.reorder()
	return nil
}

// Resolve finds the longest registered prefix matching commandStr.
// Matching is token-based: a prefix matches only on whole-token
// boundaries, so a registered "--ns:set" never claims "--ns:setX".
func (r *Registry) Resolve(commandStr string) (Match, bool) {
	tokens := Split(commandStr)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, reg := range r.ordered {
		if len(reg.tokens) > len(tokens) {
			continue
		}
		if !tokensEqual(reg.tokens, tokens[:len(reg.tokens)]) {
			continue
		}
		return Match{
			Prefix:  reg.prefix,
			Handler: reg.handler,
			Args:    tokens[len(reg.tokens):],
		}, true
	}
	return Match{}, false
}

// Prefixes returns all registered prefixes, sorted.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.entries))
	for p := range r.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Reset removes every embedder registration. Builtin registrations
// stay, so a reset runtime keeps the commands it provides itself.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for p, reg := range r.entries {
		if !reg.builtin {
			delete(r.entries, p)
		}
	}
	r.reorder()
}

// reorder recomputes the match priority list: most tokens first, longer
// prefix string breaking ties. Callers hold the write lock.
func (r *Registry) reorder() {
	r.ordered = r.ordered[:0]
	for _, reg := range r.entries {
		r.ordered = append(r.ordered, reg)
	}
	sort.Slice(r.ordered, func(i, j int) bool {
		a, b := r.ordered[i], r.ordered[j]
		if len(a.tokens) != len(b.tokens) {
			return len(a.tokens) > len(b.tokens)
		}
		if len(a.prefix) != len(b.prefix) {
			return len(a.prefix) > len(b.prefix)
		}
		return a.prefix < b.prefix
	})
}

func (r *Registry) report(d *diag.Diagnostic) {
	if r.reporter != nil {
		r.reporter.Report(d)
	}
}

func tokensEqual(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
