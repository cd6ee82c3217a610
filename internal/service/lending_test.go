package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/punchamoorthee/shelfledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_IssueBook_Unavailable_MutatesNothing(t *testing.T) {
	// arrange: one copy, already lent
	ctx := context.Background()
	f := newMemoryFixture(t)
	book := f.addBook(t, "Dune", "Sci-Fi", 1)
	alice := f.addMember(t, "Alice Johnson", "alice@email.com")
	bob := f.addMember(t, "Bob Smith", "bob@email.com")
	_, err := f.ledger.IssueBook(ctx, book.ID, alice.ID)
	require.NoError(t, err)

	// act
	_, err = f.ledger.IssueBook(ctx, book.ID, bob.ID)

	// assert
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	all, err := f.ledger.ListBorrowings(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	got, err := f.ledger.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)

	level, msg := f.notifier.last()
	assert.Equal(t, LevelError, level)
	assert.Equal(t, "Book not available", msg)
}

func Test_IssueBook_CreatesBorrowing(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newMemoryFixture(t)
	f.clock.Set("2025-01-01")
	book := f.addBook(t, "Dune", "Sci-Fi", 1)
	alice := f.addMember(t, "Alice Johnson", "alice@email.com")

	// act
	issued, err := f.ledger.IssueBook(ctx, book.ID, alice.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", issued.BorrowDate.String())
	assert.Equal(t, "2025-01-15", issued.DueDate.String())
	assert.Equal(t, domain.StatusBorrowed, issued.Status)
	assert.Nil(t, issued.ReturnDate)
	assert.Equal(t, "Dune", issued.BookTitle)
	assert.Equal(t, book.Author, issued.BookAuthor)
	assert.Equal(t, "Alice Johnson", issued.MemberName)
	assert.Equal(t, "alice@email.com", issued.MemberEmail)

	got, err := f.ledger.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)

	active, err := f.ledger.ListBorrowings(ctx, "borrowed")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, issued.ID, active[0].ID)

	_, msg := f.notifier.last()
	assert.Equal(t, `Issued "Dune" to Alice Johnson. Due: 2025-01-15`, msg)
}

func Test_IssueBook_ResolutionOrder(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	book := f.addBook(t, "Dune", "Sci-Fi", 1)
	alice := f.addMember(t, "Alice Johnson", "alice@email.com")

	_, err := f.ledger.IssueBook(ctx, "missing", alice.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ledger.IssueBook(ctx, book.ID, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	got, err := f.ledger.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies, "a failed issue must not withdraw a copy")

	_, err = f.ledger.IssueBook(ctx, book.ID, alice.ID)
	require.NoError(t, err)

	// availability is checked before the member is resolved
	_, err = f.ledger.IssueBook(ctx, book.ID, "missing")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func Test_IssueBook_MissingIDsPublished(t *testing.T) {
	// arrange
	f := newMemoryFixture(t)
	book := f.addBook(t, "Dune", "Sci-Fi", 1)

	// act
	_, err := f.ledger.IssueBook(context.Background(), book.ID, "  ")

	// assert
	assert.ErrorIs(t, err, domain.ErrValidation)
	level, msg := f.notifier.last()
	assert.Equal(t, LevelError, level)
	assert.Contains(t, msg, "book_id and member_id are required")
}

func Test_RejectIssue_Published(t *testing.T) {
	f := newMemoryFixture(t)
	reason := domain.Invalidf("malformed JSON body")

	err := f.ledger.RejectIssue(reason)

	assert.Equal(t, reason, err)
	level, msg := f.notifier.last()
	assert.Equal(t, LevelError, level)
	assert.Equal(t, reason.Error(), msg)
}

func Test_IssueReturn_RoundTrip(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newMemoryFixture(t)
	book := f.addBook(t, "1984", "Dystopian", 4)
	alice := f.addMember(t, "Alice Johnson", "alice@email.com")
	issued, err := f.ledger.IssueBook(ctx, book.ID, alice.ID)
	require.NoError(t, err)
	f.clock.Set("2025-01-05")

	// act
	returned, err := f.ledger.ReturnBook(ctx, issued.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	assert.Equal(t, "2025-01-05", returned.ReturnDate.String())

	got, err := f.ledger.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.AvailableCopies)

	history, err := f.ledger.ListBorrowings(ctx, "returned")
	require.NoError(t, err)
	require.Len(t, history, 1)
	_, msg := f.notifier.last()
	assert.Equal(t, "Book returned successfully", msg)
	f.requireLedgerConsistent(t)
}

func Test_ReturnBook_SecondReturnRejected(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newMemoryFixture(t)
	book := f.addBook(t, "Sapiens", "History", 2)
	alice := f.addMember(t, "Alice Johnson", "alice@email.com")
	bob := f.addMember(t, "Bob Smith", "bob@email.com")
	first, err := f.ledger.IssueBook(ctx, book.ID, alice.ID)
	require.NoError(t, err)
	_, err = f.ledger.IssueBook(ctx, book.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.ledger.ReturnBook(ctx, first.ID)
	require.NoError(t, err)

	// act
	_, err = f.ledger.ReturnBook(ctx, first.ID)

	// assert
	assert.ErrorIs(t, err, domain.ErrNotFound)
	got, err := f.ledger.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
	f.requireLedgerConsistent(t)
}

func Test_ReturnBook_Unknown(t *testing.T) {
	f := newMemoryFixture(t)
	_, err := f.ledger.ReturnBook(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func Test_ListBorrowings_NewestFirstAndStatusValidation(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	book := f.addBook(t, "Atomic Habits", "Self-Help", 5)
	alice := f.addMember(t, "Alice Johnson", "alice@email.com")

	var ids []string
	for _, day := range []string{"2025-01-01", "2025-01-02", "2025-01-03"} {
		f.clock.Set(day)
		b, err := f.ledger.IssueBook(ctx, book.ID, alice.ID)
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	all, err := f.ledger.ListBorrowings(ctx, "all")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID})

	_, err = f.ledger.ListBorrowings(ctx, "overdue")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func Test_IsOverdue(t *testing.T) {
	b := domain.Borrowing{DueDate: domain.MustParseDate("2026-02-15"), Status: domain.StatusBorrowed}

	assert.True(t, IsOverdue(b, domain.MustParseDate("2026-03-01")))
	assert.False(t, IsOverdue(b, domain.MustParseDate("2026-02-15")), "due today is not overdue")
	assert.False(t, IsOverdue(b, domain.MustParseDate("2026-02-01")))

	b.Status = domain.StatusReturned
	assert.False(t, IsOverdue(b, domain.MustParseDate("2026-03-01")))
}

func Test_IssueBook_ConcurrentIssuesOfLastCopies(t *testing.T) {
	// arrange
	const copies, workers = 3, 20
	ctx := context.Background()
	f := newMemoryFixture(t)
	book := f.addBook(t, "Dune", "Sci-Fi", copies)
	members := make([]domain.Member, workers)
	for i := range members {
		members[i] = f.addMember(t, "Member", "member"+string(rune('a'+i))+"@email.com")
	}

	// act
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		succeeded   int
		unavailable int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(m domain.Member) {
			defer wg.Done()
			_, err := f.ledger.IssueBook(ctx, book.ID, m.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrUnavailable):
				unavailable++
			}
		}(members[i])
	}
	wg.Wait()

	// assert
	assert.Equal(t, copies, succeeded)
	assert.Equal(t, workers-copies, unavailable)
	got, err := f.ledger.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)
	f.requireLedgerConsistent(t)
}
