package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, "fleet-ledger", "staging", "debug")

	logger.Debug("delivery settled", "driver_key", "ana@example.com")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "delivery settled", line["message"])
	assert.Equal(t, "DEBUG", line["severity"])
	assert.Equal(t, "fleet-ledger", line["service"])
	assert.Equal(t, "staging", line["env"])
	assert.Equal(t, "ana@example.com", line["driver_key"])
	assert.Contains(t, line, "timestamp")
}

func TestSetup_OmitsEmptyEnv(t *testing.T) {
	var buf bytes.Buffer
	setup(&buf, "fleet-ledger", " ", "info").Info("ready")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "env")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
