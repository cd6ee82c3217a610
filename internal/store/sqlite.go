package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/punchamoorthee/shelfledger/internal/domain"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func init() {
	// lower() and NOCASE only fold ASCII.
	if err := sqlite.RegisterDeterministicScalarFunction("fold", 1, foldFunc); err != nil {
		panic(fmt.Sprintf("register sqlite fold: %v", err))
	}
}

func foldFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return nil, fmt.Errorf("fold: unsupported argument %T", v)
	}
}

// SQLite is a file-backed Store. It keeps a single connection so writers
// are serialized by the pool.
type SQLite struct {
	db *sqlx.DB
}

// OpenSQLite opens the database at path and applies embedded migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLite{db: db}, nil
}

func migrateSQLite(db *sqlx.DB) error {
	migrations, err := loadMigrations("sqlite")
	if err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, m := range migrations {
		var applied int
		if err := db.Get(&applied, `SELECT COUNT(1) FROM `+migrationTable+` WHERE name = ?`, m.name); err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if applied > 0 {
			continue
		}
		tx, err := db.Beginx()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(m.up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			m.name, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite db: %w", err)
	}
	return nil
}

func (s *SQLite) Update(ctx context.Context, fn func(Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *SQLite) View(ctx context.Context, fn func(Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *SQLite) run(ctx context.Context, readOnly bool, fn func(Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx, readOnly: readOnly}); err != nil {
		return err
	}
	if readOnly {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx       *sqlx.Tx
	readOnly bool
}

type sqliteBook struct {
	ID              string `db:"id"`
	Title           string `db:"title"`
	Author          string `db:"author"`
	ISBN            string `db:"isbn"`
	Genre           string `db:"genre"`
	Year            int    `db:"year"`
	Description     string `db:"description"`
	CoverURL        string `db:"cover_url"`
	TotalCopies     int    `db:"total_copies"`
	AvailableCopies int    `db:"available_copies"`
	CreatedAt       int64  `db:"created_at"`
}

func (r sqliteBook) toDomain() domain.Book {
	return domain.Book{
		ID:              r.ID,
		Title:           r.Title,
		Author:          r.Author,
		ISBN:            r.ISBN,
		Genre:           r.Genre,
		Year:            r.Year,
		Description:     r.Description,
		CoverURL:        r.CoverURL,
		TotalCopies:     r.TotalCopies,
		AvailableCopies: r.AvailableCopies,
		CreatedAt:       time.UnixMilli(r.CreatedAt).UTC(),
	}
}

type sqliteMember struct {
	ID             string `db:"id"`
	Name           string `db:"name"`
	Email          string `db:"email"`
	Phone          string `db:"phone"`
	MembershipType string `db:"membership_type"`
	JoinDate       string `db:"join_date"`
	Active         bool   `db:"active"`
}

func (r sqliteMember) toDomain() (domain.Member, error) {
	joined, err := domain.ParseDate(r.JoinDate)
	if err != nil {
		return domain.Member{}, fmt.Errorf("member %s: %w", r.ID, err)
	}
	return domain.Member{
		ID:             r.ID,
		Name:           r.Name,
		Email:          r.Email,
		Phone:          r.Phone,
		MembershipType: domain.MembershipType(r.MembershipType),
		JoinDate:       joined,
		Active:         r.Active,
	}, nil
}

type sqliteBorrowing struct {
	ID          string         `db:"id"`
	BookID      string         `db:"book_id"`
	MemberID    string         `db:"member_id"`
	BookTitle   string         `db:"book_title"`
	BookAuthor  string         `db:"book_author"`
	MemberName  string         `db:"member_name"`
	MemberEmail string         `db:"member_email"`
	BorrowDate  string         `db:"borrow_date"`
	DueDate     string         `db:"due_date"`
	ReturnDate  sql.NullString `db:"return_date"`
	Status      string         `db:"status"`
}

func (r sqliteBorrowing) toDomain() (domain.Borrowing, error) {
	borrowed, err := domain.ParseDate(r.BorrowDate)
	if err != nil {
		return domain.Borrowing{}, fmt.Errorf("borrowing %s: %w", r.ID, err)
	}
	due, err := domain.ParseDate(r.DueDate)
	if err != nil {
		return domain.Borrowing{}, fmt.Errorf("borrowing %s: %w", r.ID, err)
	}
	b := domain.Borrowing{
		ID:          r.ID,
		BookID:      r.BookID,
		MemberID:    r.MemberID,
		BookTitle:   r.BookTitle,
		BookAuthor:  r.BookAuthor,
		MemberName:  r.MemberName,
		MemberEmail: r.MemberEmail,
		BorrowDate:  borrowed,
		DueDate:     due,
		Status:      domain.BorrowingStatus(r.Status),
	}
	if r.ReturnDate.Valid {
		returned, err := domain.ParseDate(r.ReturnDate.String)
		if err != nil {
			return domain.Borrowing{}, fmt.Errorf("borrowing %s: %w", r.ID, err)
		}
		b.ReturnDate = &returned
	}
	return b, nil
}

const (
	sqliteBookCols      = `id, title, author, isbn, genre, year, description, cover_url, total_copies, available_copies, created_at`
	sqliteMemberCols    = `id, name, email, phone, membership_type, join_date, active`
	sqliteBorrowingCols = `id, book_id, member_id, book_title, book_author, member_name, member_email, borrow_date, due_date, return_date, status`
)

func (t *sqliteTx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *sqliteTx) GetBook(ctx context.Context, id string) (domain.Book, error) {
	var row sqliteBook
	err := t.tx.GetContext(ctx, &row, `SELECT `+sqliteBookCols+` FROM books WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Book{}, domain.NotFound("book", id)
	}
	if err != nil {
		return domain.Book{}, fmt.Errorf("get book: %w", err)
	}
	return row.toDomain(), nil
}

func (t *sqliteTx) ListBooks(ctx context.Context, f domain.BookFilter) ([]domain.Book, error) {
	query := `SELECT ` + sqliteBookCols + ` FROM books WHERE 1 = 1`
	var args []any
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		query += ` AND (instr(fold(title), ?) > 0 OR instr(fold(author), ?) > 0 OR instr(fold(isbn), ?) > 0)`
		args = append(args, q, q, q)
	}
	if f.Genre != "" {
		query += ` AND genre = ?`
		args = append(args, f.Genre)
	}
	query += ` ORDER BY rowid`

	var rows []sqliteBook
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	out := make([]domain.Book, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (t *sqliteTx) InsertBook(ctx context.Context, b domain.Book) error {
	if err := t.writable(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO books (`+sqliteBookCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.Author, b.ISBN, b.Genre, b.Year, b.Description, b.CoverURL,
		b.TotalCopies, b.AvailableCopies, b.CreatedAt.UTC().UnixMilli())
	if err != nil {
		return sqliteWriteErr("insert book", err)
	}
	return nil
}

func (t *sqliteTx) UpdateBook(ctx context.Context, b domain.Book) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE books SET title = ?, author = ?, isbn = ?, genre = ?, year = ?,
    description = ?, cover_url = ?, total_copies = ?, available_copies = ? WHERE id = ?`,
		b.Title, b.Author, b.ISBN, b.Genre, b.Year, b.Description, b.CoverURL,
		b.TotalCopies, b.AvailableCopies, b.ID)
	if err != nil {
		return sqliteWriteErr("update book", err)
	}
	return expectAffected(res, "book", b.ID)
}

func (t *sqliteTx) DeleteBook(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return expectAffected(res, "book", id)
}

func (t *sqliteTx) GetMember(ctx context.Context, id string) (domain.Member, error) {
	var row sqliteMember
	err := t.tx.GetContext(ctx, &row, `SELECT `+sqliteMemberCols+` FROM members WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Member{}, domain.NotFound("member", id)
	}
	if err != nil {
		return domain.Member{}, fmt.Errorf("get member: %w", err)
	}
	return row.toDomain()
}

func (t *sqliteTx) FindMemberByEmail(ctx context.Context, email string) (domain.Member, error) {
	var row sqliteMember
	err := t.tx.GetContext(ctx, &row, `SELECT `+sqliteMemberCols+` FROM members WHERE email_key = ?`, strings.ToLower(email))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Member{}, domain.NotFound("member", email)
	}
	if err != nil {
		return domain.Member{}, fmt.Errorf("find member: %w", err)
	}
	return row.toDomain()
}

func (t *sqliteTx) ListMembers(ctx context.Context, f domain.MemberFilter) ([]domain.Member, error) {
	query := `SELECT ` + sqliteMemberCols + ` FROM members`
	var args []any
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		query += ` WHERE instr(fold(name), ?) > 0 OR instr(fold(email), ?) > 0`
		args = append(args, q, q)
	}
	query += ` ORDER BY rowid`

	var rows []sqliteMember
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	out := make([]domain.Member, 0, len(rows))
	for _, r := range rows {
		m, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (t *sqliteTx) InsertMember(ctx context.Context, m domain.Member) error {
	if err := t.writable(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO members (`+sqliteMemberCols+`, email_key) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Email, m.Phone, string(m.MembershipType), m.JoinDate.String(), m.Active,
		strings.ToLower(m.Email))
	if err != nil {
		return sqliteWriteErr("insert member", err)
	}
	return nil
}

func (t *sqliteTx) DeleteMember(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return expectAffected(res, "member", id)
}

func (t *sqliteTx) GetBorrowing(ctx context.Context, id string) (domain.Borrowing, error) {
	var row sqliteBorrowing
	err := t.tx.GetContext(ctx, &row, `SELECT `+sqliteBorrowingCols+` FROM borrowings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Borrowing{}, domain.NotFound("borrowing", id)
	}
	if err != nil {
		return domain.Borrowing{}, fmt.Errorf("get borrowing: %w", err)
	}
	return row.toDomain()
}

func (t *sqliteTx) ListBorrowings(ctx context.Context, f domain.BorrowingFilter) ([]domain.Borrowing, error) {
	query := `SELECT ` + sqliteBorrowingCols + ` FROM borrowings WHERE 1 = 1`
	var args []any
	switch f.Status {
	case domain.FilterBorrowed:
		query += ` AND status = ?`
		args = append(args, string(domain.StatusBorrowed))
	case domain.FilterReturned:
		query += ` AND status = ?`
		args = append(args, string(domain.StatusReturned))
	}
	if f.BookID != "" {
		query += ` AND book_id = ?`
		args = append(args, f.BookID)
	}
	if f.MemberID != "" {
		query += ` AND member_id = ?`
		args = append(args, f.MemberID)
	}
	query += ` ORDER BY rowid DESC`

	var rows []sqliteBorrowing
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list borrowings: %w", err)
	}
	out := make([]domain.Borrowing, 0, len(rows))
	for _, r := range rows {
		b, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (t *sqliteTx) InsertBorrowing(ctx context.Context, b domain.Borrowing) error {
	if err := t.writable(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO borrowings (`+sqliteBorrowingCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.BookID, b.MemberID, b.BookTitle, b.BookAuthor, b.MemberName, b.MemberEmail,
		b.BorrowDate.String(), b.DueDate.String(), nullableDate(b.ReturnDate), string(b.Status))
	if err != nil {
		return sqliteWriteErr("insert borrowing", err)
	}
	return nil
}

func (t *sqliteTx) UpdateBorrowing(ctx context.Context, b domain.Borrowing) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE borrowings SET return_date = ?, status = ?, due_date = ? WHERE id = ?`,
		nullableDate(b.ReturnDate), string(b.Status), b.DueDate.String(), b.ID)
	if err != nil {
		return sqliteWriteErr("update borrowing", err)
	}
	return expectAffected(res, "borrowing", b.ID)
}

func nullableDate(d *domain.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func expectAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.NotFound(entity, id)
	}
	return nil
}

// sqliteWriteErr maps unique and check constraint failures onto domain sentinels.
func sqliteWriteErr(op string, err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrConflict, err))
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrInvariant, err))
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
