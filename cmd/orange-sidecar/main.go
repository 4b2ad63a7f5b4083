package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orange-sidecar/internal/api"
	"orange-sidecar/internal/app"
	"orange-sidecar/internal/config"
)

func main() {
	configPath := flag.String("config", config.ConfigPath(), "path to sidecar.toml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	debugCfg := config.GetDebugConfig()
	slog.SetDefault(app.NewLogger(cfg.Logging, debugCfg.Verbose, os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, debugCfg); err != nil {
		slog.Error("sidecar stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.SidecarConfig, debugCfg config.DebugConfig) error {
	sidecar, err := app.New(ctx, cfg, debugCfg)
	if err != nil {
		return err
	}

	server, err := api.NewServer(api.Dependencies{
		Planner:       sidecar.Planner,
		Verifier:      sidecar.Verifier,
		Events:        sidecar.Bus,
		Telemetry:     sidecar.Telemetry,
		Observability: sidecar.Observability,
		RateLimit:     cfg.RateLimit,
	})
	if err != nil {
		_ = sidecar.Close(context.Background())
		return err
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("orange sidecar listening",
			"addr", httpServer.Addr,
			"guidance_loaded", sidecar.Synthesizer.GuidanceLoaded(),
			"telemetry_backend", cfg.Telemetry.Backend,
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = sidecar.Close(context.Background())
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	// event streams only end when their clients leave, so close them after the grace period
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown incomplete", "error", err)
		_ = httpServer.Close()
	}

	return sidecar.Close(shutdownCtx)
}
