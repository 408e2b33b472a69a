package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quickjot/quickjot/server"
)

const shutdownGrace = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		addr   string
		dbPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, dbPath)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	return cmd
}

func runServe(addr, dbPath string) error {
	a, err := newApp(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	limits := server.DefaultRateLimits()
	for endpoint, perMinute := range a.cfg.Server.RateLimits {
		limits.Limits[endpoint] = perMinute
	}

	srv := server.New(a.db, a.pipeline,
		server.WithLogger(slog.Default()),
		server.WithVersion(a.cfg.Server.Version),
		server.WithRateLimiter(server.NewRateLimiter(limits)),
		server.WithLLMProbe(llmProbe(a.cfg.Model)),
		server.WithAllowedEmails(a.cfg.Server.AllowedEmails),
	)

	mux := http.NewServeMux()
	srv.RegisterHTTPHandlers(mux)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup signal handling
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Quickjot API listening",
			"addr", addr,
			"db", a.cfg.Database.Path,
			"provider", a.cfg.Model.Provider,
			"model", a.cfg.Model.Name)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Block until shutdown signal or listener failure
	select {
	case <-signalCtx.Done():
		slog.Info("Received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("Shutdown complete")
	return nil
}
