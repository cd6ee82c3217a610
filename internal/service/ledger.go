package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/shelfledger/internal/domain"
	"github.com/punchamoorthee/shelfledger/internal/store"
)

const (
	logMsgCommandSucceeded  = "ledger command succeeded"
	logMsgCommandRejected   = "ledger command rejected"
	logMsgCommandFailed     = "ledger command failed"
	logMsgInvariantViolated = "inventory invariant violated"
	logAttrCommand          = "command"
	logAttrOutcome          = "outcome"
	logAttrError            = "error"
	logAttrBookID           = "book_id"
	logAttrMemberID         = "member_id"
	logAttrBorrowingID      = "borrowing_id"
)

// Notification levels published after every command.
const (
	LevelSuccess = "success"
	LevelError   = "error"
)

var ledgerCommands = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "library_ledger_commands_total",
	Help: "Ledger commands by outcome",
}, []string{"command", "outcome"})

// Notifier receives a short human-readable outcome for each command.
type Notifier interface {
	Publish(level, message string)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, string) {}

// Ledger owns the library's commands and queries. Commands that touch copy counts
// are serialized by mu and each runs inside a single store transaction.
type Ledger struct {
	store    store.Store
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
	notifier Notifier

	mu sync.Mutex
}

type Option func(*Ledger)

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(l *Ledger) {
		if n != nil {
			l.notifier = n
		}
	}
}

func NewLedger(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    s,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   slog.New(slog.DiscardHandler),
		notifier: nopNotifier{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Today is the ledger clock's calendar date.
func (l *Ledger) Today() domain.Date {
	return domain.DateOf(l.now())
}

// Ping checks that the backing store is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}

// finish records the outcome of a command in metrics, the log and the notifier.
func (l *Ledger) finish(command string, err error, success string, attrs ...any) error {
	outcome := outcomeOf(err)
	ledgerCommands.WithLabelValues(command, outcome).Inc()

	attrs = append(attrs, logAttrCommand, command, logAttrOutcome, outcome)
	switch {
	case err == nil:
		l.logger.Info(logMsgCommandSucceeded, attrs...)
		l.notifier.Publish(LevelSuccess, success)
		return nil
	case errors.Is(err, domain.ErrInvariant):
		l.logger.Error(logMsgInvariantViolated, append(attrs, logAttrError, err.Error())...)
	case outcome == "error":
		l.logger.Error(logMsgCommandFailed, append(attrs, logAttrError, err.Error())...)
	default:
		l.logger.Info(logMsgCommandRejected, append(attrs, logAttrError, err.Error())...)
	}
	l.notifier.Publish(LevelError, failureMessage(err))
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvariant):
		return "invariant"
	}
	return "error"
}

func failureMessage(err error) string {
	if errors.Is(err, domain.ErrUnavailable) {
		return "Book not available"
	}
	return err.Error()
}
