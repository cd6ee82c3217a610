package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/punchamoorthee/shelfledger/internal/domain"
	"github.com/punchamoorthee/shelfledger/internal/store"
)

// IssueBook lends one copy of a book to a member. The book is checked before
// the member, so an unavailable book is reported even for an unknown member.
func (l *Ledger) IssueBook(ctx context.Context, bookID, memberID string) (domain.Borrowing, error) {
	if strings.TrimSpace(bookID) == "" || strings.TrimSpace(memberID) == "" {
		return domain.Borrowing{}, l.RejectIssue(domain.Invalidf("book_id and member_id are required"))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.Today()
	var issued domain.Borrowing
	err := l.store.Update(ctx, func(tx store.Tx) error {
		book, err := tx.GetBook(ctx, bookID)
		if err != nil {
			return err
		}
		if book.AvailableCopies < 1 {
			return fmt.Errorf("%q: %w", book.Title, domain.ErrUnavailable)
		}
		member, err := tx.GetMember(ctx, memberID)
		if err != nil {
			return err
		}

		issued = domain.Borrowing{
			ID:          l.newID(),
			BookID:      book.ID,
			MemberID:    member.ID,
			BookTitle:   book.Title,
			BookAuthor:  book.Author,
			MemberName:  member.Name,
			MemberEmail: member.Email,
			BorrowDate:  today,
			DueDate:     DueDate(today),
			Status:      domain.StatusBorrowed,
		}
		if err := tx.InsertBorrowing(ctx, issued); err != nil {
			return err
		}
		if err := withdrawCopy(&book); err != nil {
			return err
		}
		return tx.UpdateBook(ctx, book)
	})
	if err != nil {
		return domain.Borrowing{}, l.finish("issue_book", err, "", logAttrBookID, bookID, logAttrMemberID, memberID)
	}

	return issued, l.finish("issue_book", nil, IssueMessage(issued), logAttrBorrowingID, issued.ID)
}

// RejectIssue records an issue request refused before it reached the store,
// such as one whose body could not be decoded. It returns reason.
func (l *Ledger) RejectIssue(reason error) error {
	return l.finish("issue_book", reason, "")
}

// IssueMessage is the confirmation shown after a successful issue.
func IssueMessage(b domain.Borrowing) string {
	return fmt.Sprintf("Issued %q to %s. Due: %s", b.BookTitle, b.MemberName, b.DueDate)
}

// ReturnBook closes an active borrowing and puts the copy back. A borrowing
// that is already returned is reported as not found.
func (l *Ledger) ReturnBook(ctx context.Context, borrowingID string) (domain.Borrowing, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.Today()
	var returned domain.Borrowing
	err := l.store.Update(ctx, func(tx store.Tx) error {
		b, err := tx.GetBorrowing(ctx, borrowingID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err != nil || b.Status != domain.StatusBorrowed {
			return fmt.Errorf("borrowing record %s not found or already returned: %w", borrowingID, domain.ErrNotFound)
		}

		b.Status = domain.StatusReturned
		b.ReturnDate = &today
		if err := tx.UpdateBorrowing(ctx, b); err != nil {
			return err
		}

		book, err := tx.GetBook(ctx, b.BookID)
		if err != nil {
			return fmt.Errorf("book of borrowing %s: %w", b.ID, err)
		}
		if err := restoreCopy(&book); err != nil {
			return err
		}
		if err := tx.UpdateBook(ctx, book); err != nil {
			return err
		}
		returned = b
		return nil
	})
	if err != nil {
		return domain.Borrowing{}, l.finish("return_book", err, "", logAttrBorrowingID, borrowingID)
	}
	return returned, l.finish("return_book", nil, "Book returned successfully", logAttrBorrowingID, borrowingID)
}

func (l *Ledger) GetBorrowing(ctx context.Context, id string) (domain.Borrowing, error) {
	var b domain.Borrowing
	err := l.store.View(ctx, func(tx store.Tx) error {
		var err error
		b, err = tx.GetBorrowing(ctx, id)
		return err
	})
	return b, err
}

// ListBorrowings lists borrowings newest first. status is "", all, borrowed or returned.
func (l *Ledger) ListBorrowings(ctx context.Context, status string) ([]domain.Borrowing, error) {
	filter, err := domain.ParseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	return l.FindBorrowings(ctx, domain.BorrowingFilter{Status: filter})
}

// FindBorrowings lists borrowings matching f, newest first.
func (l *Ledger) FindBorrowings(ctx context.Context, f domain.BorrowingFilter) ([]domain.Borrowing, error) {
	var out []domain.Borrowing
	err := l.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListBorrowings(ctx, f)
		return err
	})
	return out, err
}

// DueDate is the return deadline for a loan starting on borrowed.
func DueDate(borrowed domain.Date) domain.Date {
	return borrowed.AddDays(domain.LoanPeriodDays)
}

// IsOverdue reports whether b is still out after its due date. A loan due today is not overdue.
func IsOverdue(b domain.Borrowing, today domain.Date) bool {
	return b.Status == domain.StatusBorrowed && b.DueDate.Before(today)
}
