// Package bootstrap assembles the ledger and its collaborators from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/punchamoorthee/shelfledger/internal/backup"
	"github.com/punchamoorthee/shelfledger/internal/blob"
	blobfs "github.com/punchamoorthee/shelfledger/internal/blob/fs"
	blobs3 "github.com/punchamoorthee/shelfledger/internal/blob/s3"
	"github.com/punchamoorthee/shelfledger/internal/config"
	"github.com/punchamoorthee/shelfledger/internal/notify"
	"github.com/punchamoorthee/shelfledger/internal/service"
	"github.com/punchamoorthee/shelfledger/internal/store"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    store.Store
	Feed     *notify.Feed
	Ledger   *service.Ledger
	Exporter *backup.Exporter
}

// New opens the configured store and wires the ledger, feed and exporter on top of it.
// Log output goes to w.
func New(ctx context.Context, cfg *config.Config, w io.Writer) (*App, error) {
	logger, err := NewLogger(cfg, w)
	if err != nil {
		return nil, err
	}

	s, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	target, prefix, err := NewBlobStore(ctx, cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	feed := notify.NewFeed(cfg.NotificationBuffer)
	ledger := service.NewLedger(s, service.WithLogger(logger), service.WithNotifier(feed))
	exporter := backup.NewExporter(s, target, backup.WithPrefix(prefix), backup.WithLogger(logger))

	logger.Info("ledger ready", "store", cfg.StoreDriver, "export", cfg.ExportTarget)
	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    s,
		Feed:     feed,
		Ledger:   ledger,
		Exporter: exporter,
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// NewLogger builds a JSON logger in production and a text logger elsewhere.
func NewLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return store.NewMemory(), nil
	case config.DriverSQLite:
		s, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case config.DriverPostgres:
		s, err := store.OpenPostgres(ctx, cfg.DBSource)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// NewBlobStore returns the export target and the key prefix to use with it.
func NewBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, string, error) {
	switch cfg.ExportTarget {
	case config.ExportFS:
		s, err := blobfs.New(cfg.ExportDir)
		if err != nil {
			return nil, "", err
		}
		return s, "", nil
	case config.ExportS3:
		s, err := blobs3.New(ctx, blobs3.Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			return nil, "", err
		}
		return s, cfg.S3Prefix, nil
	}
	return nil, "", errors.New("unknown export target " + cfg.ExportTarget)
}
