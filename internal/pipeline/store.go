package pipeline

import (
	"fmt"
	"sort"
	"sync"
)

// Store holds the canonical template definitions. One-shot steps are
// deleted from the stored definition after they run, so later runs of
// the same template skip them permanently.
type Store struct {
	mu        sync.Mutex
	templates map[string]*Template
}

// NewStore creates an empty template store.
func NewStore() *Store {
	return &Store{templates: make(map[string]*Template)}
}

// Register adds or replaces a template definition.
func (s *Store) Register(t *Template) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("template is nil or unnamed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.Name] = t
	return nil
}

// Snapshot returns a deep copy of a template's current steps. The engine
// executes against the copy; concurrent mutation of the stored
// definition never affects a run already in flight.
func (s *Store) Snapshot(name string) (*Template, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[name]
	if !ok {
		return nil, false
	}
	cp := &Template{Name: t.Name, Fingerprint: t.Fingerprint, Steps: make([]Step, len(t.Steps))}
	copy(cp.Steps, t.Steps)
	for i := range cp.Steps {
		if len(t.Steps[i].Data) > 0 {
			data := make(map[string]string, len(t.Steps[i].Data))
			for k, v := range t.Steps[i].Data {
				data[k] = v
			}
			cp.Steps[i].Data = data
		}
	}
	return cp, true
}

// RemoveSteps deletes steps by their index in the current definition and
// refreshes the fingerprint. Indices refer to the same ordering
// Snapshot returned.
func (s *Store) RemoveSteps(name string, indices []int) {
	if len(indices) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[name]
	if !ok {
		return
	}

	sorted := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for _, idx := range sorted {
		if idx < 0 || idx >= len(t.Steps) {
			continue
		}
		t.Steps = append(t.Steps[:idx], t.Steps[idx+1:]...)
	}
	t.Fingerprint = fingerprint(t)
}

// Names returns all registered template names, sorted.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.templates))
	for name := range s.templates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// All returns deep copies of every registered template, sorted by name.
func (s *Store) All() []*Template {
	names := s.Names()
	out := make([]*Template, 0, len(names))
	for _, name := range names {
		if t, ok := s.Snapshot(name); ok {
			out = append(out, t)
		}
	}
	return out
}
