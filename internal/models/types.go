package models

import (
	"time"

	"github.com/punchamoorthee/shelfledger/internal/domain"
)

// IssueRequest is the payload from the client to lend a book.
type IssueRequest struct {
	BookID   string `json:"book_id"`
	MemberID string `json:"member_id"`
}

// CommandResponse is the canonical response for state-changing requests.
type CommandResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BorrowingView adds the derived overdue flag to a borrowing.
type BorrowingView struct {
	domain.Borrowing
	Overdue bool `json:"overdue"`
}

// NewBorrowingViews flags each borrowing that is overdue as of today.
func NewBorrowingViews(bs []domain.Borrowing, overdue func(domain.Borrowing) bool) []BorrowingView {
	out := make([]BorrowingView, 0, len(bs))
	for _, b := range bs {
		out = append(out, BorrowingView{Borrowing: b, Overdue: overdue(b)})
	}
	return out
}

// ExportResult describes a snapshot written by the exporter.
type ExportResult struct {
	Key        string    `json:"key"`
	ExportedAt time.Time `json:"exported_at"`
	Books      int       `json:"books"`
	Members    int       `json:"members"`
	Borrowings int       `json:"borrowings"`
}

// IdempotencyRecord holds the state of a request key.
type IdempotencyRecord struct {
	Key            string
	RequestHash    string
	Status         string
	ResponseBody   []byte
	ResponseStatus int
}
