package main

import (
	"context"
	"fmt"
	"log/slog"

	"pastebox/internal/blob"
	"pastebox/internal/blob/boltblob"
	"pastebox/internal/blob/s3blob"
	"pastebox/internal/config"
	"pastebox/internal/notify"
	"pastebox/internal/storage"
	"pastebox/internal/storage/pgstore"
	"pastebox/internal/storage/sqlitestore"
)

func openStore(ctx context.Context, cfg config.Config) (storage.Manager, error) {
	switch cfg.DBDriver {
	case "postgres":
		return pgstore.Open(ctx, cfg.DBDSN)
	case "sqlite":
		return sqlitestore.Open(ctx, cfg.DBDSN)
	}
	return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
}

func openBlobs(ctx context.Context, cfg config.Config) (blob.Store, func(), error) {
	switch cfg.BlobDriver {
	case "bolt":
		s, err := boltblob.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "s3":
		s, err := s3blob.New(ctx, s3blob.Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
}

// newSender picks SMTP delivery when a host is configured and logs mail
// otherwise.
func newSender(cfg config.Config, logger *slog.Logger) (notify.Sender, error) {
	if cfg.SMTPHost == "" {
		return notify.NewLogSender(logger), nil
	}
	return notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
}
