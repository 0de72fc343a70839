package diag

import "golang.org/x/time/rate"

// RateMonitor guards against runaway chains by bounding how many
// executions may start per second. A token bucket with burst equal to
// the per-second budget behaves like the fixed one-second window the
// runtime needs: sustained load above the budget trips the guard.
type RateMonitor struct {
	lim *rate.Limiter
}

// NewRateMonitor creates a monitor allowing perSecond executions per
// second. perSecond <= 0 disables the guard.
func NewRateMonitor(perSecond int) *RateMonitor {
	if perSecond <= 0 {
		return &RateMonitor{}
	}
	return &RateMonitor{lim: rate.NewLimiter(rate.Limit(perSecond), perSecond)}
}

// Allow reports whether another execution may start now.
func (m *RateMonitor) Allow() bool {
	if m == nil || m.lim == nil {
		return true
	}
	return m.lim.Allow()
}
