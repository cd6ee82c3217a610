// Package backup writes point-in-time JSON snapshots of the ledger to a blob store.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/punchamoorthee/shelfledger/internal/blob"
	"github.com/punchamoorthee/shelfledger/internal/domain"
	"github.com/punchamoorthee/shelfledger/internal/models"
	"github.com/punchamoorthee/shelfledger/internal/store"
)

const (
	logMsgExportWritten = "ledger snapshot exported"
	logAttrKey          = "key"
	logAttrLocation     = "location"
	logAttrBooks        = "books"
	logAttrBorrowings   = "borrowings"

	keyTimeLayout = "20060102T150405Z"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is the on-disk shape of a snapshot.
type Document struct {
	ExportedAt time.Time          `json:"exported_at"`
	Books      []domain.Book      `json:"books"`
	Members    []domain.Member    `json:"members"`
	Borrowings []domain.Borrowing `json:"borrowings"`
}

type Exporter struct {
	store  store.Store
	target blob.Store
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Exporter)

// WithPrefix prepends prefix to every key, e.g. "library/".
func WithPrefix(prefix string) Option {
	return func(e *Exporter) { e.prefix = prefix }
}

func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewExporter(s store.Store, target blob.Store, opts ...Option) *Exporter {
	e := &Exporter{
		store:  s,
		target: target,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Key is the object key used for a snapshot taken at t.
func (e *Exporter) Key(t time.Time) string {
	return e.prefix + "ledger-" + t.UTC().Format(keyTimeLayout) + ".json"
}

// Export reads all collections in one view and writes them as a single document.
func (e *Exporter) Export(ctx context.Context) (models.ExportResult, error) {
	var snap store.Snapshot
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		snap, err = store.ReadSnapshot(ctx, tx)
		return err
	})
	if err != nil {
		return models.ExportResult{}, fmt.Errorf("read snapshot: %w", err)
	}

	at := e.now().UTC()
	doc := Document{ExportedAt: at, Books: snap.Books, Members: snap.Members, Borrowings: snap.Borrowings}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return models.ExportResult{}, fmt.Errorf("encode snapshot: %w", err)
	}

	key := e.Key(at)
	if err := e.target.Put(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		return models.ExportResult{}, fmt.Errorf("write snapshot: %w", err)
	}
	e.logger.Info(logMsgExportWritten,
		logAttrKey, key,
		logAttrLocation, e.target.Location(key),
		logAttrBooks, len(doc.Books),
		logAttrBorrowings, len(doc.Borrowings))

	return models.ExportResult{
		Key:        key,
		ExportedAt: at,
		Books:      len(doc.Books),
		Members:    len(doc.Members),
		Borrowings: len(doc.Borrowings),
	}, nil
}
