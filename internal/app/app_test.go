package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orange-sidecar/internal/agent"
	"orange-sidecar/internal/config"
	"orange-sidecar/internal/telemetry"
)

func TestNewWithDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Guidance.RootDir = t.TempDir()

	a, err := New(context.Background(), cfg, config.DebugConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close(context.Background())) })

	assert.False(t, a.Synthesizer.GuidanceLoaded())
	assert.False(t, a.Observability.Enabled())
	assert.IsType(t, &telemetry.MemoryStore{}, a.Telemetry)

	plan, err := a.Planner.Plan(context.Background(), agent.PlanRequest{SessionID: "s1", Transcript: "open Notes"})
	require.NoError(t, err)
	assert.Equal(t, agent.RiskLow, plan.RiskLevel)
}

func TestNewLoadsVendoredGuidance(t *testing.T) {
	root := t.TempDir()
	doc := filepath.Join(root, "guidance.yaml")
	require.NoError(t, os.WriteFile(doc, []byte("important_rules: |\n  Never close unsaved windows.\n"), 0o644))

	cfg := config.DefaultConfig()
	cfg.Guidance.RootDir = root
	cfg.Guidance.Path = "guidance.yaml"

	a, err := New(context.Background(), cfg, config.DebugConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.True(t, a.Synthesizer.GuidanceLoaded())
	assert.Equal(t, "Never close unsaved windows.", a.Synthesizer.Guidance())
	assert.Equal(t, "loaded", a.Planner.Models().FeatureFlags["guidance"])
}

func TestNewWithSQLiteTelemetry(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Guidance.Source = config.GuidanceNone
	cfg.Telemetry.Backend = config.TelemetrySQLite
	cfg.Telemetry.DSN = filepath.Join(t.TempDir(), "telemetry.db")

	a, err := New(context.Background(), cfg, config.DebugConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	count, err := a.Telemetry.Append(context.Background(), telemetry.Event{SessionID: "s1", Stage: "plan", Status: "ok"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewRejectsUnknownGuidanceSource(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Guidance.Source = "carrier-pigeon"

	_, err := New(context.Background(), cfg, config.DebugConfig{})
	assert.ErrorContains(t, err, "guidance")
}

func TestNewWithDebugTrace(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Guidance.Source = config.GuidanceNone

	a, err := New(context.Background(), cfg, config.DebugConfig{Enabled: true, LogDir: dir, MaxLogMB: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	_, err = a.Planner.Plan(context.Background(), agent.PlanRequest{SessionID: "trace-1", Transcript: "open Mail"})
	require.NoError(t, err)

	path := a.DebugLogger.SessionFile("trace-1")
	require.NotEmpty(t, path)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "planning_completed")
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingSection
		verbose bool
		debug   bool
		warn    bool
	}{
		{"info default", config.LoggingSection{Level: "info"}, false, false, true},
		{"unknown level", config.LoggingSection{Level: "chatty"}, false, false, true},
		{"debug", config.LoggingSection{Level: "DEBUG"}, false, true, true},
		{"error hides warn", config.LoggingSection{Level: "error"}, false, false, false},
		{"verbose forces debug", config.LoggingSection{Level: "error"}, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.cfg, tt.verbose, &bytes.Buffer{})
			ctx := context.Background()
			assert.Equal(t, tt.debug, logger.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.warn, logger.Enabled(ctx, slog.LevelWarn))
		})
	}
}

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingSection{Level: "info", Format: "json"}, false, &buf)
	logger.Info("hello", "component", "test")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "test", line["component"])
}
