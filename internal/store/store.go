// Package store persists the catalog, the roster and the lending log.
//
// Every backend exposes the same transactional surface: callers run a closure
// against a Tx and the backend commits only when the closure returns nil.
package store

import (
	"context"
	"errors"

	"github.com/punchamoorthee/shelfledger/internal/domain"
)

// ErrReadOnly is returned by write methods of a Tx opened through View.
var ErrReadOnly = errors.New("store: write in read-only transaction")

// Store runs units of work atomically against one backend.
type Store interface {
	// Update runs fn in a read-write transaction. A non-nil error from fn
	// discards every write fn made.
	Update(ctx context.Context, fn func(Tx) error) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Tx) error) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of record operations available inside a unit of work.
// Lookups of missing records return an error wrapping domain.ErrNotFound.
// Listings preserve insertion order, except borrowings which list newest first.
type Tx interface {
	GetBook(ctx context.Context, id string) (domain.Book, error)
	ListBooks(ctx context.Context, f domain.BookFilter) ([]domain.Book, error)
	InsertBook(ctx context.Context, b domain.Book) error
	UpdateBook(ctx context.Context, b domain.Book) error
	DeleteBook(ctx context.Context, id string) error

	GetMember(ctx context.Context, id string) (domain.Member, error)
	FindMemberByEmail(ctx context.Context, email string) (domain.Member, error)
	ListMembers(ctx context.Context, f domain.MemberFilter) ([]domain.Member, error)
	InsertMember(ctx context.Context, m domain.Member) error
	DeleteMember(ctx context.Context, id string) error

	GetBorrowing(ctx context.Context, id string) (domain.Borrowing, error)
	ListBorrowings(ctx context.Context, f domain.BorrowingFilter) ([]domain.Borrowing, error)
	InsertBorrowing(ctx context.Context, b domain.Borrowing) error
	UpdateBorrowing(ctx context.Context, b domain.Borrowing) error
}

// Snapshot is the full content of a store, in listing order.
type Snapshot struct {
	Books      []domain.Book      `json:"books"`
	Members    []domain.Member    `json:"members"`
	Borrowings []domain.Borrowing `json:"borrowings"`
}

// ReadSnapshot copies every record out of tx.
func ReadSnapshot(ctx context.Context, tx Tx) (Snapshot, error) {
	books, err := tx.ListBooks(ctx, domain.BookFilter{})
	if err != nil {
		return Snapshot{}, err
	}
	members, err := tx.ListMembers(ctx, domain.MemberFilter{})
	if err != nil {
		return Snapshot{}, err
	}
	borrowings, err := tx.ListBorrowings(ctx, domain.BorrowingFilter{Status: domain.FilterAll})
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Books: books, Members: members, Borrowings: borrowings}, nil
}
