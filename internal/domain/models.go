package domain

import (
	"strings"
	"time"
)

// LoanPeriodDays is the fixed lending period applied at issue time.
const LoanPeriodDays = 14

// BorrowingStatus is the lifecycle state of a Borrowing.
type BorrowingStatus string

const (
	StatusBorrowed BorrowingStatus = "borrowed"
	StatusReturned BorrowingStatus = "returned"
)

// MembershipType is the tier a member signed up for.
type MembershipType string

const (
	MembershipStandard MembershipType = "standard"
	MembershipPremium  MembershipType = "premium"
)

// Valid reports whether t is a known tier.
func (t MembershipType) Valid() bool {
	return t == MembershipStandard || t == MembershipPremium
}

// Book is a catalog entry with its copy counts.
// TotalCopies - AvailableCopies equals the number of active borrowings of the book.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn,omitempty"`
	Genre           string    `json:"genre,omitempty"`
	Year            int       `json:"year,omitempty"`
	Description     string    `json:"description,omitempty"`
	CoverURL        string    `json:"cover_url,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
}

// OnLoan returns the number of copies currently lent out.
func (b Book) OnLoan() int {
	return b.TotalCopies - b.AvailableCopies
}

// Member is a registered library patron.
type Member struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone,omitempty"`
	MembershipType MembershipType `json:"membership_type"`
	JoinDate       Date           `json:"join_date"`
	Active         bool           `json:"active"`
}

// Borrowing records one copy of a book lent to a member.
// The book and member display fields are snapshots taken at issue time.
type Borrowing struct {
	ID          string          `json:"id"`
	BookID      string          `json:"book_id"`
	MemberID    string          `json:"member_id"`
	BookTitle   string          `json:"book_title"`
	BookAuthor  string          `json:"book_author"`
	MemberName  string          `json:"member_name"`
	MemberEmail string          `json:"member_email"`
	BorrowDate  Date            `json:"borrow_date"`
	DueDate     Date            `json:"due_date"`
	ReturnDate  *Date           `json:"return_date"`
	Status      BorrowingStatus `json:"status"`
}

// GenreCount is one row of the genre distribution.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"cnt"`
}

// Statistics is the dashboard report derived from the three collections.
type Statistics struct {
	TotalBooks       int          `json:"total_books"`
	AvailableBooks   int          `json:"available_books"`
	TotalMembers     int          `json:"total_members"`
	ActiveBorrowings int          `json:"active_borrowings"`
	Overdue          int          `json:"overdue"`
	Genres           []GenreCount `json:"genres"`
}

// BookInput carries the fields of a new catalog entry.
type BookInput struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn"`
	Genre       string `json:"genre"`
	Year        int    `json:"year"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url"`
	TotalCopies int    `json:"total_copies"`
}

// BookPatch carries a partial update; nil fields are left untouched.
type BookPatch struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	ISBN        *string `json:"isbn"`
	Genre       *string `json:"genre"`
	Year        *int    `json:"year"`
	Description *string `json:"description"`
	CoverURL    *string `json:"cover_url"`
	TotalCopies *int    `json:"total_copies"`
}

// MemberInput carries the fields of a new member.
type MemberInput struct {
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone"`
	MembershipType MembershipType `json:"membership_type"`
}

// BookFilter selects books by free text over title, author and ISBN and by exact genre.
type BookFilter struct {
	Search string
	Genre  string
}

// Match reports whether b satisfies the filter.
func (f BookFilter) Match(b Book) bool {
	if f.Genre != "" && b.Genre != f.Genre {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(b.Title), q) ||
		strings.Contains(strings.ToLower(b.Author), q) ||
		strings.Contains(strings.ToLower(b.ISBN), q)
}

// MemberFilter selects members by free text over name and email.
type MemberFilter struct {
	Search string
}

// Match reports whether m satisfies the filter.
func (f MemberFilter) Match(m Member) bool {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(m.Name), q) ||
		strings.Contains(strings.ToLower(m.Email), q)
}

// StatusFilter narrows a borrowing listing. The zero value lists everything.
type StatusFilter string

const (
	FilterAll      StatusFilter = "all"
	FilterBorrowed StatusFilter = "borrowed"
	FilterReturned StatusFilter = "returned"
)

// ParseStatusFilter accepts "", all, borrowed and returned.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterBorrowed:
		return FilterBorrowed, nil
	case FilterReturned:
		return FilterReturned, nil
	}
	return "", Invalidf("unknown status filter %q", s)
}

// BorrowingFilter selects borrowings by status and, optionally, by book or member.
type BorrowingFilter struct {
	Status   StatusFilter
	BookID   string
	MemberID string
}

// Match reports whether b satisfies the filter.
func (f BorrowingFilter) Match(b Borrowing) bool {
	switch f.Status {
	case FilterBorrowed:
		if b.Status != StatusBorrowed {
			return false
		}
	case FilterReturned:
		if b.Status != StatusReturned {
			return false
		}
	}
	if f.BookID != "" && b.BookID != f.BookID {
		return false
	}
	if f.MemberID != "" && b.MemberID != f.MemberID {
		return false
	}
	return true
}
