package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hyprpranav/Visitor-Management-System/internal/api"
	"github.com/hyprpranav/Visitor-Management-System/internal/backend"
	"github.com/hyprpranav/Visitor-Management-System/internal/config"
	"github.com/hyprpranav/Visitor-Management-System/internal/console"
)

func main() {
	fmt.Println("Visitor Management Console")
	fmt.Println("==========================")

	// Load configuration
	cfg, created, err := config.LoadOrInit("config.yaml")
	switch {
	case err != nil && cfg == nil:
		fmt.Printf("Warning: Could not load config file: %v\n", err)
		fmt.Println("Using default configuration")
		cfg = config.Default()
		cfg.ConfigPath = "config.yaml"
	case err != nil:
		fmt.Printf("Warning: Could not write default config: %v\n", err)
	case created:
		fmt.Printf("Wrote default configuration to %s\n", cfg.ConfigPath)
	}

	// Log to stdout and to the activity buffer shown in the console
	logBuf := api.NewLogBuffer(cfg.Console.LogCapacity)
	logger := slog.New(api.NewLogHandler(logBuf, slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	slog.SetDefault(logger)

	// Print configuration
	fmt.Printf("Server Port: %d\n", cfg.Server.Port)
	fmt.Printf("Backend Endpoint: %s\n", cfg.Backend.Endpoint)

	if err := run(cfg, logBuf, logger); err != nil {
		logger.Error("console stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logBuf *api.LogBuffer, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := backend.NewMetrics(reg)

	client := backend.NewClient(cfg.Backend, backend.WithMetrics(metrics))
	c := console.New(client, console.Options{
		ShareBaseURL:         cfg.Console.ShareBaseURL,
		NotificationTTL:      cfg.Console.NotificationTTL,
		NotificationCapacity: cfg.Console.NotificationCapacity,
		Logger:               logger,
	})

	poller := backend.NewPendingPoller(client, cfg.Backend.PollInterval, metrics, logger)
	poller.OnUpdate = c.ApplyPending

	server := api.NewServer(cfg, c, api.Options{
		Status:   poller,
		Logs:     logBuf,
		Gatherer: reg,
		Logger:   logger,
	})

	logger.Info("console starting", "backend", client.Endpoint())
	if !c.CheckConnection(ctx) {
		logger.Warn("backend not reachable at startup", "backend", client.Endpoint())
	}

	fmt.Printf("\nStarting server on http://localhost:%d\n", cfg.Server.Port)
	fmt.Println("Press Ctrl+C to stop")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poller.Start(ctx)
		<-ctx.Done()
		poller.Stop()
		return nil
	})
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("console shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
