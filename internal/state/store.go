// Package state tracks per-(command, target) execution lifecycle for the
// current session. Nothing here is durable: the store is reset-scoped
// in-memory state.
package state

import (
	"fmt"
	"sync"
)

// Lifecycle is the execution state of one (command, target) pair.
type Lifecycle string

const (
	// Active commands always run. This is the implicit default.
	Active Lifecycle = "active"
	// Disabled commands never run.
	Disabled Lifecycle = "disabled"
	// Once commands run a single time, then transition to Completed.
	Once Lifecycle = "once"
	// Completed commands never run again. Sticky until an explicit reset.
	Completed Lifecycle = "completed"
)

// Parse parses a declared lifecycle attribute value.
func Parse(s string) (Lifecycle, error) {
	switch Lifecycle(s) {
	case Active, Disabled, Once, Completed:
		return Lifecycle(s), nil
	}
	return "", fmt.Errorf("unknown lifecycle state %q", s)
}

// Store maps (command, target) pairs to lifecycle states. All access is
// internally locked so callers off the queue goroutine (the HTTP API,
// tests) stay safe.
type Store struct {
	mu sync.Mutex
	m  map[string]Lifecycle
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{m: make(map[string]Lifecycle)}
}

func key(commandStr, targetID string) string {
	return commandStr + "\x00" + targetID
}

// Get returns the lifecycle for a pair, Active when never set.
func (s *Store) Get(commandStr, targetID string) Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lc, ok := s.m[key(commandStr, targetID)]; ok {
		return lc
	}
	return Active
}

// Set records a lifecycle state for a pair.
func (s *Store) Set(commandStr, targetID string, lc Lifecycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key(commandStr, targetID)] = lc
}

// Seed applies a declared initial state only when the pair has no
// recorded state yet. A completed pair stays completed no matter what
// the node declares on a later activation.
func (s *Store) Seed(commandStr, targetID string, lc Lifecycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(commandStr, targetID)
	if _, ok := s.m[k]; !ok {
		s.m[k] = lc
	}
}

// Complete marks a pair completed.
func (s *Store) Complete(commandStr, targetID string) {
	s.Set(commandStr, targetID, Completed)
}

// Snapshot returns a copy of all recorded states keyed by
// "command\x00target". Used by the inspection API.
func (s *Store) Snapshot() map[string]Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Lifecycle, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// Len returns the number of recorded pairs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Reset clears every recorded state. Test isolation and dev tooling only.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[string]Lifecycle)
}
