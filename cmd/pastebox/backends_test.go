package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"pastebox/internal/config"
	"pastebox/internal/notify"
)

func TestOpenLocalBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.DBDSN = filepath.Join(dir, "pastebox.db")
	cfg.BoltPath = filepath.Join(dir, "blobs.db")

	store, err := openStore(ctx, cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	blobs, closeBlobs, err := openBlobs(ctx, cfg)
	if err != nil {
		t.Fatalf("open blobs: %v", err)
	}
	defer closeBlobs()
	loc, err := blobs.Upload(ctx, "k", "v")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got, err := blobs.Get(ctx, loc); err != nil || got != "v" {
		t.Fatalf("get: %q %v", got, err)
	}
}

func TestUnknownDrivers(t *testing.T) {
	cfg := config.Defaults()
	cfg.DBDriver = "oracle"
	if _, err := openStore(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown db driver")
	}
	cfg.BlobDriver = "ftp"
	if _, _, err := openBlobs(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown blob driver")
	}
}

func TestNewSenderFallsBackToLog(t *testing.T) {
	s, err := newSender(config.Defaults(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if _, ok := s.(*notify.LogSender); !ok {
		t.Fatalf("expected log sender, got %T", s)
	}
}
