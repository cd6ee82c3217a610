package service

import (
	"context"
	"sort"

	"github.com/punchamoorthee/shelfledger/internal/domain"
	"github.com/punchamoorthee/shelfledger/internal/store"
)

// Statistics reads the three collections in one view and summarizes them as of the given day.
func (l *Ledger) Statistics(ctx context.Context, asOf domain.Date) (domain.Statistics, error) {
	var snap store.Snapshot
	err := l.store.View(ctx, func(tx store.Tx) error {
		var err error
		snap, err = store.ReadSnapshot(ctx, tx)
		return err
	})
	if err != nil {
		return domain.Statistics{}, err
	}
	return ComputeStatistics(snap.Books, snap.Members, snap.Borrowings, asOf), nil
}

// ComputeStatistics derives the dashboard figures. Genres are ordered by count
// descending, then by name; books without a genre are left out.
func ComputeStatistics(books []domain.Book, members []domain.Member, borrowings []domain.Borrowing, today domain.Date) domain.Statistics {
	stats := domain.Statistics{TotalBooks: len(books), Genres: []domain.GenreCount{}}

	perGenre := make(map[string]int)
	for _, b := range books {
		stats.AvailableBooks += b.AvailableCopies
		if b.Genre != "" {
			perGenre[b.Genre]++
		}
	}
	for _, m := range members {
		if m.Active {
			stats.TotalMembers++
		}
	}
	for _, b := range borrowings {
		if b.Status != domain.StatusBorrowed {
			continue
		}
		stats.ActiveBorrowings++
		if IsOverdue(b, today) {
			stats.Overdue++
		}
	}

	for genre, n := range perGenre {
		stats.Genres = append(stats.Genres, domain.GenreCount{Genre: genre, Count: n})
	}
	sort.Slice(stats.Genres, func(i, j int) bool {
		if stats.Genres[i].Count != stats.Genres[j].Count {
			return stats.Genres[i].Count > stats.Genres[j].Count
		}
		return stats.Genres[i].Genre < stats.Genres[j].Genre
	})
	return stats
}
