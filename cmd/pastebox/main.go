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

	"golang.org/x/time/rate"

	"pastebox/internal/auth"
	"pastebox/internal/codec"
	"pastebox/internal/config"
	"pastebox/internal/httpserver"
	"pastebox/internal/id"
	"pastebox/internal/metrics"
	"pastebox/internal/notify"
	"pastebox/internal/records"
	"pastebox/internal/users"
)

func main() {
	cfg, err := config.FromEnvironment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed opening data store: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	blobs, closeBlobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed opening blob store: %w", err)
	}
	defer closeBlobs()

	tokenCodec, err := codec.New(cfg.TokenCodec)
	if err != nil {
		return err
	}
	tokens, err := auth.NewHS256(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return err
	}
	m := metrics.New()

	sender, err := newSender(cfg, logger)
	if err != nil {
		return err
	}
	outbox := notify.NewOutbox(sender, notify.OutboxConfig{
		Rate:   rate.Limit(cfg.MailRate),
		Burst:  cfg.MailBurst,
		Logger: logger,
		OnSent: m.MailDelivered,
	})
	outbox.Start(ctx)

	ids := id.New(0)
	recordSvc, err := records.New(records.Config{
		Store:   store,
		Blobs:   blobs,
		Codec:   tokenCodec,
		IDs:     ids,
		BaseURL: cfg.BaseURL,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return err
	}
	userSvc, err := users.New(users.Config{
		Store:   store,
		Blobs:   blobs,
		Tokens:  tokens,
		Mailer:  outbox,
		IDs:     ids,
		BaseURL: cfg.BaseURL,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	srv, err := httpserver.New(httpserver.Config{
		Records:    recordSvc,
		Users:      userSvc,
		Tokens:     tokens,
		Metrics:    m,
		MaxBytes:   cfg.MaxBodyBytes,
		TrustProxy: cfg.BehindProxy,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to construct server: %w", err)
	}

	httpserver.StartJanitor(ctx, recordSvc, httpserver.JanitorConfig{
		Interval:    cfg.JanitorInterval,
		OrphanGrace: cfg.OrphanGrace,
		Logger:      logger,
	})

	srvHTTP := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "db", cfg.DBDriver, "blobs", cfg.BlobDriver)
		if err := srvHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	}
}
