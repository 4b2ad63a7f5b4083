// Package app assembles the sidecar from its configuration. Both binaries
// share this wiring and differ only in the transport they put in front of it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"orange-sidecar/internal/adapter"
	"orange-sidecar/internal/config"
	"orange-sidecar/internal/debug"
	"orange-sidecar/internal/eventbus"
	"orange-sidecar/internal/observability"
	"orange-sidecar/internal/orchestrator"
	"orange-sidecar/internal/telemetry"
	"orange-sidecar/internal/tools"
	"orange-sidecar/internal/verifier"
)

// App holds the long-lived components of one sidecar process.
type App struct {
	Config        *config.SidecarConfig
	DebugLogger   *debug.DebugLogger
	Bus           *eventbus.Bus
	Synthesizer   *adapter.Adapter
	Planner       *orchestrator.PlanOrchestrator
	Verifier      *verifier.Verifier
	Telemetry     telemetry.Store
	Observability *observability.Provider
}

// New builds every component. Guidance problems never fail startup; a broken
// telemetry backend or exporter does.
func New(ctx context.Context, cfg *config.SidecarConfig, debugCfg config.DebugConfig) (*App, error) {
	logger := slog.Default().With("component", "app")

	debugLogger := debug.NewDebugLogger(debugCfg.Enabled, debugCfg.LogDir, debugCfg.MaxLogMB)
	if debugLogger.IsEnabled() {
		logger.Info("debug trace enabled", "dir", debugCfg.LogDir)
	}

	toolSet := tools.NewToolSet(cfg.Guidance)
	if cfg.Guidance.Source == config.GuidanceFile && !toolSet.Exists(".") {
		logger.Info("guidance root not found, continuing without guidance", "root", toolSet.RootDir())
	}
	source, err := adapter.NewGuidanceSource(cfg.Guidance, toolSet)
	if err != nil {
		return nil, fmt.Errorf("failed to configure guidance: %w", err)
	}

	bus := eventbus.New()
	synth := adapter.New(ctx, source)

	obs, err := observability.New(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("failed to start observability: %w", err)
	}

	store, err := telemetry.Open(ctx, cfg.Telemetry)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open telemetry store: %w", err)
	}

	logger.Info("sidecar assembled",
		"guidance_source", cfg.Guidance.Source,
		"guidance_loaded", synth.GuidanceLoaded(),
		"telemetry_backend", cfg.Telemetry.Backend,
		"observability", obs.Enabled(),
	)

	return &App{
		Config:        cfg,
		DebugLogger:   debugLogger,
		Bus:           bus,
		Synthesizer:   synth,
		Planner:       orchestrator.NewPlanOrchestrator(synth, bus, cfg.Planner, debugLogger),
		Verifier:      verifier.NewVerifier(debugLogger),
		Telemetry:     store,
		Observability: obs,
	}, nil
}

// Close flushes telemetry and exporters.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Telemetry.Close(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry close: %w", err))
	}
	if err := a.Observability.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("observability shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger. Unknown levels fall back to info; a
// verbose debug trace forces debug level.
func NewLogger(cfg config.LoggingSection, verbose bool, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
