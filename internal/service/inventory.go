package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/punchamoorthee/shelfledger/internal/domain"
	"github.com/punchamoorthee/shelfledger/internal/store"
)

// AddBook registers a title with all of its copies available.
// A zero copy count means one copy.
func (l *Ledger) AddBook(ctx context.Context, in domain.BookInput) (domain.Book, error) {
	book, err := l.newBook(in)
	if err != nil {
		return domain.Book{}, l.finish("add_book", err, "")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	err = l.store.Update(ctx, func(tx store.Tx) error {
		return tx.InsertBook(ctx, book)
	})
	if err != nil {
		return domain.Book{}, l.finish("add_book", err, "")
	}
	return book, l.finish("add_book", nil, "Book added", logAttrBookID, book.ID)
}

func (l *Ledger) newBook(in domain.BookInput) (domain.Book, error) {
	title, author := strings.TrimSpace(in.Title), strings.TrimSpace(in.Author)
	if title == "" {
		return domain.Book{}, domain.Invalidf("title is required")
	}
	if author == "" {
		return domain.Book{}, domain.Invalidf("author is required")
	}
	if in.TotalCopies < 0 {
		return domain.Book{}, domain.Invalidf("total_copies must not be negative")
	}
	if in.Year < 0 {
		return domain.Book{}, domain.Invalidf("year must not be negative")
	}
	copies := in.TotalCopies
	if copies == 0 {
		copies = 1
	}
	return domain.Book{
		ID:              l.newID(),
		Title:           title,
		Author:          author,
		ISBN:            strings.TrimSpace(in.ISBN),
		Genre:           strings.TrimSpace(in.Genre),
		Year:            in.Year,
		Description:     strings.TrimSpace(in.Description),
		CoverURL:        strings.TrimSpace(in.CoverURL),
		TotalCopies:     copies,
		AvailableCopies: copies,
		CreatedAt:       l.now(),
	}, nil
}

// UpdateBook merges the non-nil fields of patch into the book. A new total
// shifts availability by the same amount so copies on loan stay accounted for.
func (l *Ledger) UpdateBook(ctx context.Context, id string, patch domain.BookPatch) (domain.Book, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var updated domain.Book
	err := l.store.Update(ctx, func(tx store.Tx) error {
		book, err := tx.GetBook(ctx, id)
		if err != nil {
			return err
		}
		updated, err = applyBookPatch(book, patch)
		if err != nil {
			return err
		}
		return tx.UpdateBook(ctx, updated)
	})
	if err != nil {
		return domain.Book{}, l.finish("update_book", err, "", logAttrBookID, id)
	}
	return updated, l.finish("update_book", nil, "Book updated", logAttrBookID, id)
}

func applyBookPatch(b domain.Book, p domain.BookPatch) (domain.Book, error) {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return b, domain.Invalidf("title is required")
		}
		b.Title = title
	}
	if p.Author != nil {
		author := strings.TrimSpace(*p.Author)
		if author == "" {
			return b, domain.Invalidf("author is required")
		}
		b.Author = author
	}
	if p.ISBN != nil {
		b.ISBN = strings.TrimSpace(*p.ISBN)
	}
	if p.Genre != nil {
		b.Genre = strings.TrimSpace(*p.Genre)
	}
	if p.Year != nil {
		if *p.Year < 0 {
			return b, domain.Invalidf("year must not be negative")
		}
		b.Year = *p.Year
	}
	if p.Description != nil {
		b.Description = strings.TrimSpace(*p.Description)
	}
	if p.CoverURL != nil {
		b.CoverURL = strings.TrimSpace(*p.CoverURL)
	}
	if p.TotalCopies != nil {
		total := *p.TotalCopies
		onLoan := b.OnLoan()
		if total < 1 {
			return b, domain.Invalidf("total_copies must be at least 1")
		}
		if total < onLoan {
			return b, domain.Invalidf("total_copies %d is below the %d copies on loan", total, onLoan)
		}
		b.AvailableCopies = total - onLoan
		b.TotalCopies = total
	}
	return b, nil
}

// DeleteBook removes a title that has no copy on loan. Returned borrowings keep their snapshots.
func (l *Ledger) DeleteBook(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.store.Update(ctx, func(tx store.Tx) error {
		book, err := tx.GetBook(ctx, id)
		if err != nil {
			return err
		}
		active, err := tx.ListBorrowings(ctx, domain.BorrowingFilter{Status: domain.FilterBorrowed, BookID: id})
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return domain.Conflictf("%q has %d copies on loan", book.Title, len(active))
		}
		return tx.DeleteBook(ctx, id)
	})
	return l.finish("delete_book", err, "Book deleted", logAttrBookID, id)
}

func (l *Ledger) GetBook(ctx context.Context, id string) (domain.Book, error) {
	var book domain.Book
	err := l.store.View(ctx, func(tx store.Tx) error {
		var err error
		book, err = tx.GetBook(ctx, id)
		return err
	})
	return book, err
}

// ListBooks returns books matching the filter in the order they were added.
func (l *Ledger) ListBooks(ctx context.Context, f domain.BookFilter) ([]domain.Book, error) {
	var books []domain.Book
	err := l.store.View(ctx, func(tx store.Tx) error {
		var err error
		books, err = tx.ListBooks(ctx, f)
		return err
	})
	return books, err
}

// withdrawCopy takes one available copy off the shelf.
func withdrawCopy(b *domain.Book) error {
	if b.AvailableCopies-1 < 0 {
		return fmt.Errorf("withdraw from %s with %d available: %w", b.ID, b.AvailableCopies, domain.ErrInvariant)
	}
	b.AvailableCopies--
	return nil
}

// restoreCopy puts one copy back on the shelf.
func restoreCopy(b *domain.Book) error {
	if b.AvailableCopies+1 > b.TotalCopies {
		return fmt.Errorf("restore to %s with %d/%d available: %w", b.ID, b.AvailableCopies, b.TotalCopies, domain.ErrInvariant)
	}
	b.AvailableCopies++
	return nil
}
