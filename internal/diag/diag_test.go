package diag

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPub struct {
	types []string
}

func (p *capturingPub) Publish(eventType string, data any) {
	p.types = append(p.types, eventType)
}

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestDiagnosticError(t *testing.T) {
	cause := errors.New("boom")
	d := Error("handler failed").WithCommand("--x:save").WithCause(cause)

	assert.Contains(t, d.Error(), "handler failed")
	assert.Contains(t, d.Error(), "--x:save")
	assert.ErrorIs(t, d, cause)
}

func TestReporterSuppressesWarningsOutsideDebug(t *testing.T) {
	logger, buf := newTestLogger()
	pub := &capturingPub{}
	r := NewReporter(logger, pub, false)

	r.Report(Warning("minor thing"))
	assert.Empty(t, buf.String())
	assert.Empty(t, pub.types)

	r.Report(Error("real thing"))
	assert.Contains(t, buf.String(), "real thing")
	assert.Equal(t, []string{"diagnostic"}, pub.types)
}

func TestReporterSurfacesWarningsInDebug(t *testing.T) {
	logger, buf := newTestLogger()
	r := NewReporter(logger, nil, true)

	r.Report(Warning("minor thing").WithTarget("editor"))
	assert.Contains(t, buf.String(), "minor thing")
	assert.Contains(t, buf.String(), "editor")
}

func TestSuggestPrefersContainment(t *testing.T) {
	known := []string{"--media:play", "--media:pause", "--text:set", "--text:clear"}

	got := Suggest("--media:paus", known)
	require.NotEmpty(t, got)
	assert.Equal(t, "--media:pause", got[0])
}

func TestSuggestBoundedDistanceAndCap(t *testing.T) {
	known := []string{"--a", "--b", "--c", "--d", "--completely:different:thing"}

	got := Suggest("--x", known)
	assert.LessOrEqual(t, len(got), 3)
	assert.NotContains(t, got, "--completely:different:thing")
}

func TestSuggestEmptyInput(t *testing.T) {
	assert.Nil(t, Suggest("  ", []string{"--a"}))
}

func TestRateMonitorTrips(t *testing.T) {
	m := NewRateMonitor(5)
	allowed := 0
	for i := 0; i < 50; i++ {
		if m.Allow() {
			allowed++
		}
	}
	assert.GreaterOrEqual(t, allowed, 5)
	assert.Less(t, allowed, 50)
}

func TestRateMonitorDisabled(t *testing.T) {
	m := NewRateMonitor(0)
	for i := 0; i < 100; i++ {
		assert.True(t, m.Allow())
	}
}
