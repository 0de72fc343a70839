package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "WARN", "json")

	Get().Info("should be dropped")
	Get().Warn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should be dropped")
	assert.Contains(t, out, "should appear")
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "bogus", "json")

	Get().Debug("debug line")
	Get().Info("info line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.Contains(t, out, "info line")
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "INFO", "text")

	Get().Info("hello")
	assert.True(t, strings.Contains(buf.String(), "msg=hello"))
}

func TestWithComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "INFO", "json")

	WithComponent("dispatch").Info("ping")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dispatch", entry["component"])
}

func TestWithExecutionAddsField(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "INFO", "json")

	WithExecution("abc-123").Info("ping")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc-123", entry["execution_id"])
}
