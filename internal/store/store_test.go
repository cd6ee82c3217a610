package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/shelfledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Memory_Contract(t *testing.T) {
	runContract(t, func(t *testing.T) Store { return NewMemory() })
}

func Test_SQLite_Contract(t *testing.T) {
	runContract(t, func(t *testing.T) Store {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "library.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func Test_SQLite_ReopenKeepsData(t *testing.T) {
	// arrange
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "library.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	book := sampleBook("Dune", "Sci-Fi", 1)
	require.NoError(t, s.Update(ctx, func(tx Tx) error { return tx.InsertBook(ctx, book) }))
	require.NoError(t, s.Close())

	// act
	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	// assert
	require.NoError(t, reopened.View(ctx, func(tx Tx) error {
		got, err := tx.GetBook(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, "Dune", got.Title)
		return nil
	}))
}

// Test_Postgres_Contract runs against a disposable database named by LEDGER_TEST_DB_SOURCE.
func Test_Postgres_Contract(t *testing.T) {
	dsn := os.Getenv("LEDGER_TEST_DB_SOURCE")
	if dsn == "" {
		t.Skip("LEDGER_TEST_DB_SOURCE not set")
	}
	runContract(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := OpenPostgres(ctx, dsn)
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, `TRUNCATE books, members, borrowings`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func Test_SQLite_PingAfterClose(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Error(t, s.Ping(context.Background()))
}

func sampleBook(title, genre string, copies int) domain.Book {
	return domain.Book{
		ID:              uuid.NewString(),
		Title:           title,
		Author:          "Author of " + title,
		ISBN:            "978-" + title,
		Genre:           genre,
		Year:            1965,
		TotalCopies:     copies,
		AvailableCopies: copies,
		CreatedAt:       time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
	}
}

func sampleMember(name, email string) domain.Member {
	return domain.Member{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          email,
		MembershipType: domain.MembershipStandard,
		JoinDate:       domain.MustParseDate("2025-01-01"),
		Active:         true,
	}
}

func runContract(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, open(t).Ping(ctx))
	})

	t.Run("books round trip in insertion order", func(t *testing.T) {
		// arrange
		s := open(t)
		dune := sampleBook("Dune", "Sci-Fi", 1)
		sapiens := sampleBook("Sapiens", "History", 2)

		// act
		err := s.Update(ctx, func(tx Tx) error {
			if err := tx.InsertBook(ctx, dune); err != nil {
				return err
			}
			return tx.InsertBook(ctx, sapiens)
		})
		require.NoError(t, err)

		// assert
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			got, err := tx.GetBook(ctx, dune.ID)
			require.NoError(t, err)
			assert.Equal(t, dune.Title, got.Title)
			assert.Equal(t, dune.ISBN, got.ISBN)
			assert.Equal(t, 1, got.AvailableCopies)
			assert.True(t, dune.CreatedAt.Equal(got.CreatedAt))

			all, err := tx.ListBooks(ctx, domain.BookFilter{})
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, dune.ID, all[0].ID)
			assert.Equal(t, sapiens.ID, all[1].ID)
			return nil
		}))
	})

	t.Run("book filters", func(t *testing.T) {
		s := open(t)
		dune := sampleBook("Dune", "Sci-Fi", 1)
		sapiens := sampleBook("Sapiens", "History", 2)
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			require.NoError(t, tx.InsertBook(ctx, dune))
			return tx.InsertBook(ctx, sapiens)
		}))

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			got, err := tx.ListBooks(ctx, domain.BookFilter{Search: "DUN"})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, dune.ID, got[0].ID)

			got, err = tx.ListBooks(ctx, domain.BookFilter{Genre: "History"})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, sapiens.ID, got[0].ID)

			got, err = tx.ListBooks(ctx, domain.BookFilter{Search: "author of", Genre: "Fiction"})
			require.NoError(t, err)
			assert.Empty(t, got)
			return nil
		}))
	})

	t.Run("missing records are not found", func(t *testing.T) {
		s := open(t)
		missing := uuid.NewString()

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			_, err := tx.GetBook(ctx, missing)
			assert.ErrorIs(t, err, domain.ErrNotFound)
			_, err = tx.GetMember(ctx, missing)
			assert.ErrorIs(t, err, domain.ErrNotFound)
			_, err = tx.GetBorrowing(ctx, missing)
			assert.ErrorIs(t, err, domain.ErrNotFound)
			_, err = tx.GetBook(ctx, "not-a-uuid")
			assert.ErrorIs(t, err, domain.ErrNotFound)
			return nil
		}))
		err := s.Update(ctx, func(tx Tx) error { return tx.DeleteBook(ctx, missing) })
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("failed update leaves no trace", func(t *testing.T) {
		// arrange
		s := open(t)
		book := sampleBook("Dune", "Sci-Fi", 1)
		boom := errors.New("boom")

		// act
		err := s.Update(ctx, func(tx Tx) error {
			require.NoError(t, tx.InsertBook(ctx, book))
			return boom
		})

		// assert
		assert.ErrorIs(t, err, boom)
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			_, err := tx.GetBook(ctx, book.ID)
			assert.ErrorIs(t, err, domain.ErrNotFound)
			return nil
		}))
	})

	t.Run("view rejects writes", func(t *testing.T) {
		s := open(t)
		err := s.View(ctx, func(tx Tx) error {
			return tx.InsertBook(ctx, sampleBook("Dune", "Sci-Fi", 1))
		})
		assert.ErrorIs(t, err, ErrReadOnly)
	})

	t.Run("members keep emails unique", func(t *testing.T) {
		// arrange
		s := open(t)
		alice := sampleMember("Alice Johnson", "alice@email.com")
		require.NoError(t, s.Update(ctx, func(tx Tx) error { return tx.InsertMember(ctx, alice) }))

		// act
		err := s.Update(ctx, func(tx Tx) error {
			return tx.InsertMember(ctx, sampleMember("Alice Again", "ALICE@email.com"))
		})

		// assert
		assert.ErrorIs(t, err, domain.ErrConflict)
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			found, err := tx.FindMemberByEmail(ctx, "Alice@Email.com")
			require.NoError(t, err)
			assert.Equal(t, alice.ID, found.ID)
			assert.True(t, alice.JoinDate.Equal(found.JoinDate))

			got, err := tx.ListMembers(ctx, domain.MemberFilter{Search: "johnson"})
			require.NoError(t, err)
			assert.Len(t, got, 1)
			return nil
		}))
	})

	t.Run("case folding covers non-ASCII text", func(t *testing.T) {
		// arrange
		s := open(t)
		book := sampleBook("Éclair Élan", "Fiction", 1)
		emile := sampleMember("Émile Zola", "ÉMILE@x.com")
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			require.NoError(t, tx.InsertBook(ctx, book))
			return tx.InsertMember(ctx, emile)
		}))

		// act
		err := s.Update(ctx, func(tx Tx) error {
			return tx.InsertMember(ctx, sampleMember("Emile Again", "émile@x.com"))
		})

		// assert
		assert.ErrorIs(t, err, domain.ErrConflict)
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			books, err := tx.ListBooks(ctx, domain.BookFilter{Search: "éclair"})
			require.NoError(t, err)
			require.Len(t, books, 1)
			assert.Equal(t, book.ID, books[0].ID)

			members, err := tx.ListMembers(ctx, domain.MemberFilter{Search: "émile"})
			require.NoError(t, err)
			assert.Len(t, members, 1)

			found, err := tx.FindMemberByEmail(ctx, "émile@X.com")
			require.NoError(t, err)
			assert.Equal(t, emile.ID, found.ID)
			return nil
		}))
	})

	t.Run("member delete", func(t *testing.T) {
		s := open(t)
		bob := sampleMember("Bob Smith", "bob@email.com")
		require.NoError(t, s.Update(ctx, func(tx Tx) error { return tx.InsertMember(ctx, bob) }))
		require.NoError(t, s.Update(ctx, func(tx Tx) error { return tx.DeleteMember(ctx, bob.ID) }))
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			_, err := tx.GetMember(ctx, bob.ID)
			assert.ErrorIs(t, err, domain.ErrNotFound)
			return nil
		}))
	})

	t.Run("borrowings list newest first and update in place", func(t *testing.T) {
		// arrange
		s := open(t)
		book := sampleBook("Dune", "Sci-Fi", 2)
		member := sampleMember("Alice Johnson", "alice@email.com")
		first := domain.Borrowing{
			ID: uuid.NewString(), BookID: book.ID, MemberID: member.ID,
			BookTitle: book.Title, BookAuthor: book.Author, MemberName: member.Name, MemberEmail: member.Email,
			BorrowDate: domain.MustParseDate("2025-01-01"), DueDate: domain.MustParseDate("2025-01-15"),
			Status: domain.StatusBorrowed,
		}
		second := first
		second.ID = uuid.NewString()
		second.BorrowDate = domain.MustParseDate("2025-01-02")
		second.DueDate = domain.MustParseDate("2025-01-16")

		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			require.NoError(t, tx.InsertBook(ctx, book))
			require.NoError(t, tx.InsertMember(ctx, member))
			require.NoError(t, tx.InsertBorrowing(ctx, first))
			return tx.InsertBorrowing(ctx, second)
		}))

		// act
		returned := domain.MustParseDate("2025-01-10")
		first.ReturnDate = &returned
		first.Status = domain.StatusReturned
		require.NoError(t, s.Update(ctx, func(tx Tx) error { return tx.UpdateBorrowing(ctx, first) }))

		// assert
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			all, err := tx.ListBorrowings(ctx, domain.BorrowingFilter{Status: domain.FilterAll})
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, second.ID, all[0].ID)
			assert.Equal(t, first.ID, all[1].ID)

			active, err := tx.ListBorrowings(ctx, domain.BorrowingFilter{Status: domain.FilterBorrowed, BookID: book.ID})
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Nil(t, active[0].ReturnDate)

			got, err := tx.GetBorrowing(ctx, first.ID)
			require.NoError(t, err)
			require.NotNil(t, got.ReturnDate)
			assert.Equal(t, "2025-01-10", got.ReturnDate.String())
			assert.Equal(t, domain.StatusReturned, got.Status)
			assert.Equal(t, "Dune", got.BookTitle)
			assert.Equal(t, "2025-01-15", got.DueDate.String())
			return nil
		}))
	})

	t.Run("snapshot", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			require.NoError(t, tx.InsertBook(ctx, sampleBook("Dune", "Sci-Fi", 1)))
			return tx.InsertMember(ctx, sampleMember("Carol White", "carol@email.com"))
		}))

		var snap Snapshot
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			var err error
			snap, err = ReadSnapshot(ctx, tx)
			return err
		}))
		assert.Len(t, snap.Books, 1)
		assert.Len(t, snap.Members, 1)
		assert.Empty(t, snap.Borrowings)
	})
}
