package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_BookFilter_Match(t *testing.T) {
	book := Book{Title: "Dune", Author: "Frank Herbert", ISBN: "978-0441013593", Genre: "Sci-Fi"}

	tests := []struct {
		name   string
		filter BookFilter
		want   bool
	}{
		{"empty", BookFilter{}, true},
		{"title case-insensitive", BookFilter{Search: "dUnE"}, true},
		{"author substring", BookFilter{Search: "herb"}, true},
		{"isbn substring", BookFilter{Search: "0441"}, true},
		{"genre exact", BookFilter{Genre: "Sci-Fi"}, true},
		{"genre is case-sensitive", BookFilter{Genre: "sci-fi"}, false},
		{"search and genre", BookFilter{Search: "dune", Genre: "History"}, false},
		{"miss", BookFilter{Search: "gatsby"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(book))
		})
	}
}

func Test_MemberFilter_Match(t *testing.T) {
	m := Member{Name: "Alice Johnson", Email: "alice@email.com"}

	assert.True(t, MemberFilter{}.Match(m))
	assert.True(t, MemberFilter{Search: "JOHN"}.Match(m))
	assert.True(t, MemberFilter{Search: "@email"}.Match(m))
	assert.False(t, MemberFilter{Search: "bob"}.Match(m))
}

func Test_ParseStatusFilter(t *testing.T) {
	for in, want := range map[string]StatusFilter{
		"":         FilterAll,
		"all":      FilterAll,
		"Borrowed": FilterBorrowed,
		"returned": FilterReturned,
	} {
		got, err := ParseStatusFilter(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStatusFilter("lost")
	assert.True(t, errors.Is(err, ErrValidation))
}

func Test_BorrowingFilter_Match(t *testing.T) {
	active := Borrowing{BookID: "b1", MemberID: "m1", Status: StatusBorrowed}
	done := Borrowing{BookID: "b1", MemberID: "m2", Status: StatusReturned}

	assert.True(t, BorrowingFilter{}.Match(active))
	assert.True(t, BorrowingFilter{Status: FilterBorrowed}.Match(active))
	assert.False(t, BorrowingFilter{Status: FilterBorrowed}.Match(done))
	assert.True(t, BorrowingFilter{Status: FilterReturned}.Match(done))
	assert.False(t, BorrowingFilter{MemberID: "m1"}.Match(done))
	assert.True(t, BorrowingFilter{BookID: "b1", MemberID: "m2"}.Match(done))
}

func Test_Errors_WrapSentinels(t *testing.T) {
	assert.ErrorIs(t, Invalidf("title is required"), ErrValidation)
	assert.ErrorIs(t, NotFound("book", "x"), ErrNotFound)
	assert.ErrorIs(t, Conflictf("email taken"), ErrConflict)
	assert.EqualError(t, NotFound("book", "x"), "book x: not found")
}
