package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"orange-sidecar/internal/app"
	"orange-sidecar/internal/config"
	"orange-sidecar/internal/observability"
	"orange-sidecar/internal/rpc"
)

func main() {
	configPath := flag.String("config", config.ConfigPath(), "path to sidecar.toml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	// stdout carries the protocol, so logs go to stderr
	debugCfg := config.GetDebugConfig()
	slog.SetDefault(app.NewLogger(cfg.Logging, debugCfg.Verbose, os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sidecar, err := app.New(ctx, cfg, debugCfg)
	if err != nil {
		slog.Error("failed to start sidecar", "error", err)
		os.Exit(1)
	}

	server, err := rpc.NewServer(sidecar.Planner, sidecar.Verifier, sidecar.Bus, observability.ServiceVersion)
	if err != nil {
		slog.Error("failed to start rpc server", "error", err)
		_ = sidecar.Close(context.Background())
		os.Exit(1)
	}

	slog.Info("orange sidecar serving JSON-RPC on stdio", "guidance_loaded", sidecar.Synthesizer.GuidanceLoaded())

	serveErr := server.Serve(ctx, os.Stdin, os.Stdout)
	if err := sidecar.Close(context.Background()); err != nil {
		slog.Warn("shutdown incomplete", "error", err)
	}
	if serveErr != nil && ctx.Err() == nil {
		slog.Error("stdio loop failed", "error", serveErr)
		os.Exit(1)
	}
}
