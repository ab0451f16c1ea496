package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/choreday/internal/config"
	"github.com/dukerupert/choreday/internal/logging"
	"github.com/dukerupert/choreday/internal/schedule"
	"github.com/dukerupert/choreday/internal/server"
)

func newServeCmd() *cobra.Command {
	var memory bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily generation schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, memory)
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "use an in-memory store instead of SQLite")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, memory bool) error {
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := openStore(cfg, memory)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := server.New(db, server.Config{
		AuthSecret:      []byte(cfg.AuthSecret),
		AdminKeyHash:    cfg.AdminKeyHash,
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
	}, logger)
	defer srv.Close()

	if !cfg.PushEnabled() {
		logger.Info("push notifications disabled, VAPID keys not configured")
	}
	if cfg.AdminKeyHash == "" {
		logger.Warn("admin routes are open, no admin key hash configured")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv.RateLimiter().StartCleanup(ctx, 5*time.Minute)

	sched, err := schedule.New(srv.Generator(), cfg.GenerateScope, cfg.GenerateAt, logger.With("component", "schedule"))
	if err != nil {
		return err
	}
	sched.Start(ctx)
	defer sched.Stop()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("choreday listening", "addr", httpServer.Addr, "memory", memory)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
