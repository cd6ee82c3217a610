package api

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/shelfledger/internal/domain"
	"github.com/punchamoorthee/shelfledger/internal/models"
	"github.com/punchamoorthee/shelfledger/internal/service"
)

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Ping(r.Context()); err != nil {
		h.logger.Warn(logMsgStoreDown, logAttrError, err.Error())
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Books

func (h *Handler) ListBooksHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	books, err := h.ledger.ListBooks(r.Context(), domain.BookFilter{Search: q.Get("q"), Genre: q.Get("genre")})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, books)
}

func (h *Handler) GetBookHandler(w http.ResponseWriter, r *http.Request) {
	book, err := h.ledger.GetBook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, book)
}

func (h *Handler) CreateBookHandler(w http.ResponseWriter, r *http.Request) {
	var in domain.BookInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	book, err := h.ledger.AddBook(r.Context(), in)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/books/"+book.ID)
	respondWithJSON(w, http.StatusCreated, models.CommandResponse{Message: "Book added", Data: book})
}

// UpdateBookHandler serves both PUT and PATCH; absent fields keep their value.
func (h *Handler) UpdateBookHandler(w http.ResponseWriter, r *http.Request) {
	var patch domain.BookPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	book, err := h.ledger.UpdateBook(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.CommandResponse{Message: "Book updated", Data: book})
}

func (h *Handler) DeleteBookHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteBook(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.CommandResponse{Message: "Book deleted"})
}

// Members

func (h *Handler) ListMembersHandler(w http.ResponseWriter, r *http.Request) {
	members, err := h.ledger.ListMembers(r.Context(), domain.MemberFilter{Search: r.URL.Query().Get("q")})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, members)
}

func (h *Handler) GetMemberHandler(w http.ResponseWriter, r *http.Request) {
	member, err := h.ledger.GetMember(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, member)
}

func (h *Handler) CreateMemberHandler(w http.ResponseWriter, r *http.Request) {
	var in domain.MemberInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	member, err := h.ledger.AddMember(r.Context(), in)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/members/"+member.ID)
	respondWithJSON(w, http.StatusCreated, models.CommandResponse{Message: "Member added", Data: member})
}

func (h *Handler) DeleteMemberHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.RemoveMember(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.CommandResponse{Message: "Member removed"})
}

// Borrowings

func (h *Handler) ListBorrowingsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := domain.ParseStatusFilter(q.Get("status"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	bs, err := h.ledger.FindBorrowings(r.Context(), domain.BorrowingFilter{
		Status:   status,
		BookID:   q.Get("book_id"),
		MemberID: q.Get("member_id"),
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewBorrowingViews(bs, h.overdue))
}

func (h *Handler) GetBorrowingHandler(w http.ResponseWriter, r *http.Request) {
	b, err := h.ledger.GetBorrowing(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.BorrowingView{Borrowing: b, Overdue: h.overdue(b)})
}

// IssueBookHandler lends a copy. With an Idempotency-Key header a retried
// request replays the first response instead of issuing a second copy.
func (h *Handler) IssueBookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Stream read error")
		return
	}

	key := r.Header.Get(idempotencyHeader)
	if key != "" {
		existing, err := h.idem.begin(key, hashBody(body))
		switch err {
		case nil:
		case errIdempotencyConflict:
			respondWithError(w, http.StatusConflict, "Request processing in progress")
			return
		case errIdempotencyMismatch:
			respondWithError(w, http.StatusUnprocessableEntity, "Key reuse with mismatched payload")
			return
		}
		if existing != nil {
			writeRaw(w, existing.ResponseStatus, existing.ResponseBody)
			return
		}
	}

	completed := false
	if key != "" {
		defer func() {
			if !completed {
				h.idem.release(key)
			}
		}()
	}

	status, payload := h.issue(r, body)
	out, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		out = []byte(`{"error":"Internal Server Error"}`)
	}
	if key != "" && status == http.StatusCreated {
		h.idem.complete(key, status, out)
		completed = true
	}
	writeRaw(w, status, out)
}

func (h *Handler) issue(r *http.Request, body []byte) (int, any) {
	var req models.IssueRequest
	if err := json.Unmarshal(body, &req); err != nil {
		_ = h.ledger.RejectIssue(domain.Invalidf("malformed JSON body"))
		return http.StatusBadRequest, models.ErrorResponse{Error: "Malformed JSON body"}
	}

	b, err := h.ledger.IssueBook(r.Context(), req.BookID, req.MemberID)
	if err != nil {
		return h.errorPayload(r, err)
	}
	return http.StatusCreated, models.CommandResponse{
		Message: service.IssueMessage(b),
		Data:    models.BorrowingView{Borrowing: b, Overdue: h.overdue(b)},
	}
}

func (h *Handler) ReturnBookHandler(w http.ResponseWriter, r *http.Request) {
	b, err := h.ledger.ReturnBook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.CommandResponse{
		Message: "Book returned successfully",
		Data:    models.BorrowingView{Borrowing: b},
	})
}

// Reporting

func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	asOf := h.ledger.Today()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		d, err := domain.ParseDate(raw)
		if err != nil {
			respondWithError(w, http.StatusUnprocessableEntity, "as_of must be a YYYY-MM-DD date")
			return
		}
		asOf = d
	}
	stats, err := h.ledger.Statistics(r.Context(), asOf)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (h *Handler) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		respondWithJSON(w, http.StatusOK, []any{})
		return
	}
	respondWithJSON(w, http.StatusOK, h.feed.Recent())
}

func (h *Handler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Export is not configured")
		return
	}
	res, err := h.exporter.Export(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, models.CommandResponse{Message: "Snapshot exported", Data: res})
}
