package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/punchamoorthee/shelfledger/internal/domain"
)

// Memory is an in-process Store. Each Update works on a private copy of the
// state that replaces the live one only when the closure succeeds.
type Memory struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	books          map[string]domain.Book
	bookOrder      []string
	members        map[string]domain.Member
	memberOrder    []string
	borrowings     map[string]domain.Borrowing
	borrowingOrder []string // newest first
}

func newMemState() *memState {
	return &memState{
		books:      make(map[string]domain.Book),
		members:    make(map[string]domain.Member),
		borrowings: make(map[string]domain.Borrowing),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		books:          make(map[string]domain.Book, len(s.books)),
		bookOrder:      slices.Clone(s.bookOrder),
		members:        make(map[string]domain.Member, len(s.members)),
		memberOrder:    slices.Clone(s.memberOrder),
		borrowings:     make(map[string]domain.Borrowing, len(s.borrowings)),
		borrowingOrder: slices.Clone(s.borrowingOrder),
	}
	for k, v := range s.books {
		c.books[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.borrowings {
		c.borrowings[k] = v
	}
	return c
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

func (m *Memory) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memTx{state: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTx{state: m.state, readOnly: true})
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

type memTx struct {
	state    *memState
	readOnly bool
}

func (t *memTx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *memTx) GetBook(_ context.Context, id string) (domain.Book, error) {
	b, ok := t.state.books[id]
	if !ok {
		return domain.Book{}, domain.NotFound("book", id)
	}
	return b, nil
}

func (t *memTx) ListBooks(_ context.Context, f domain.BookFilter) ([]domain.Book, error) {
	out := make([]domain.Book, 0, len(t.state.bookOrder))
	for _, id := range t.state.bookOrder {
		if b := t.state.books[id]; f.Match(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *memTx) InsertBook(_ context.Context, b domain.Book) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.books[b.ID]; ok {
		return domain.Conflictf("book %s already exists", b.ID)
	}
	t.state.books[b.ID] = b
	t.state.bookOrder = append(t.state.bookOrder, b.ID)
	return nil
}

func (t *memTx) UpdateBook(_ context.Context, b domain.Book) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.books[b.ID]; !ok {
		return domain.NotFound("book", b.ID)
	}
	t.state.books[b.ID] = b
	return nil
}

func (t *memTx) DeleteBook(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.books[id]; !ok {
		return domain.NotFound("book", id)
	}
	delete(t.state.books, id)
	t.state.bookOrder = slices.DeleteFunc(t.state.bookOrder, func(v string) bool { return v == id })
	return nil
}

func (t *memTx) GetMember(_ context.Context, id string) (domain.Member, error) {
	m, ok := t.state.members[id]
	if !ok {
		return domain.Member{}, domain.NotFound("member", id)
	}
	return m, nil
}

func (t *memTx) FindMemberByEmail(_ context.Context, email string) (domain.Member, error) {
	for _, id := range t.state.memberOrder {
		if m := t.state.members[id]; strings.EqualFold(m.Email, email) {
			return m, nil
		}
	}
	return domain.Member{}, domain.NotFound("member", email)
}

func (t *memTx) ListMembers(_ context.Context, f domain.MemberFilter) ([]domain.Member, error) {
	out := make([]domain.Member, 0, len(t.state.memberOrder))
	for _, id := range t.state.memberOrder {
		if m := t.state.members[id]; f.Match(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *memTx) InsertMember(ctx context.Context, m domain.Member) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.members[m.ID]; ok {
		return domain.Conflictf("member %s already exists", m.ID)
	}
	if _, err := t.FindMemberByEmail(ctx, m.Email); err == nil {
		return domain.Conflictf("email %s already registered", m.Email)
	}
	t.state.members[m.ID] = m
	t.state.memberOrder = append(t.state.memberOrder, m.ID)
	return nil
}

func (t *memTx) DeleteMember(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.members[id]; !ok {
		return domain.NotFound("member", id)
	}
	delete(t.state.members, id)
	t.state.memberOrder = slices.DeleteFunc(t.state.memberOrder, func(v string) bool { return v == id })
	return nil
}

func (t *memTx) GetBorrowing(_ context.Context, id string) (domain.Borrowing, error) {
	b, ok := t.state.borrowings[id]
	if !ok {
		return domain.Borrowing{}, domain.NotFound("borrowing", id)
	}
	return copyBorrowing(b), nil
}

func (t *memTx) ListBorrowings(_ context.Context, f domain.BorrowingFilter) ([]domain.Borrowing, error) {
	out := make([]domain.Borrowing, 0, len(t.state.borrowingOrder))
	for _, id := range t.state.borrowingOrder {
		if b := t.state.borrowings[id]; f.Match(b) {
			out = append(out, copyBorrowing(b))
		}
	}
	return out, nil
}

func (t *memTx) InsertBorrowing(_ context.Context, b domain.Borrowing) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.borrowings[b.ID]; ok {
		return domain.Conflictf("borrowing %s already exists", b.ID)
	}
	t.state.borrowings[b.ID] = copyBorrowing(b)
	t.state.borrowingOrder = append([]string{b.ID}, t.state.borrowingOrder...)
	return nil
}

func (t *memTx) UpdateBorrowing(_ context.Context, b domain.Borrowing) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.borrowings[b.ID]; !ok {
		return domain.NotFound("borrowing", b.ID)
	}
	t.state.borrowings[b.ID] = copyBorrowing(b)
	return nil
}

// copyBorrowing detaches the ReturnDate pointer from the stored record.
func copyBorrowing(b domain.Borrowing) domain.Borrowing {
	if b.ReturnDate != nil {
		d := *b.ReturnDate
		b.ReturnDate = &d
	}
	return b
}
