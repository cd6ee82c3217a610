package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/shelfledger/internal/domain"
)

// Postgres is a Store backed by a pgx connection pool. Write transactions lock
// the rows they read so concurrent issues of the same book queue up.
type Postgres struct {
	pool    *pgxpool.Pool
	dialect goqu.DialectWrapper
}

// OpenPostgres connects to connString and applies embedded migrations.
func OpenPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if err := migratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Postgres{pool: pool, dialect: goqu.Dialect("postgres")}, nil
}

func migratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	migrations, err := loadMigrations("postgres")
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, m := range migrations {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `INSERT INTO `+migrationTable+` (name) VALUES ($1) ON CONFLICT DO NOTHING`, m.name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
			_, err = tx.Exec(ctx, m.up)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// View runs fn against a repeatable-read snapshot so multi-query reports stay consistent.
func (s *Postgres) View(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	return fn(&pgTx{tx: tx, dialect: s.dialect, readOnly: true})
}

type pgTx struct {
	tx       pgx.Tx
	dialect  goqu.DialectWrapper
	readOnly bool
}

type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

type pgBook struct {
	ID              string    `db:"id"`
	Title           string    `db:"title"`
	Author          string    `db:"author"`
	ISBN            string    `db:"isbn"`
	Genre           string    `db:"genre"`
	Year            int       `db:"year"`
	Description     string    `db:"description"`
	CoverURL        string    `db:"cover_url"`
	TotalCopies     int       `db:"total_copies"`
	AvailableCopies int       `db:"available_copies"`
	CreatedAt       time.Time `db:"created_at"`
}

type pgMember struct {
	ID             string    `db:"id"`
	Name           string    `db:"name"`
	Email          string    `db:"email"`
	Phone          string    `db:"phone"`
	MembershipType string    `db:"membership_type"`
	JoinDate       time.Time `db:"join_date"`
	Active         bool      `db:"active"`
}

type pgBorrowing struct {
	ID          string     `db:"id"`
	BookID      string     `db:"book_id"`
	MemberID    string     `db:"member_id"`
	BookTitle   string     `db:"book_title"`
	BookAuthor  string     `db:"book_author"`
	MemberName  string     `db:"member_name"`
	MemberEmail string     `db:"member_email"`
	BorrowDate  time.Time  `db:"borrow_date"`
	DueDate     time.Time  `db:"due_date"`
	ReturnDate  *time.Time `db:"return_date"`
	Status      string     `db:"status"`
}

func (r pgBook) toDomain() domain.Book {
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
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

func (r pgMember) toDomain() domain.Member {
	return domain.Member{
		ID:             r.ID,
		Name:           r.Name,
		Email:          r.Email,
		Phone:          r.Phone,
		MembershipType: domain.MembershipType(r.MembershipType),
		JoinDate:       domain.DateOf(r.JoinDate),
		Active:         r.Active,
	}
}

func (r pgBorrowing) toDomain() domain.Borrowing {
	b := domain.Borrowing{
		ID:          r.ID,
		BookID:      r.BookID,
		MemberID:    r.MemberID,
		BookTitle:   r.BookTitle,
		BookAuthor:  r.BookAuthor,
		MemberName:  r.MemberName,
		MemberEmail: r.MemberEmail,
		BorrowDate:  domain.DateOf(r.BorrowDate),
		DueDate:     domain.DateOf(r.DueDate),
		Status:      domain.BorrowingStatus(r.Status),
	}
	if r.ReturnDate != nil {
		d := domain.DateOf(*r.ReturnDate)
		b.ReturnDate = &d
	}
	return b
}

func textID(col string) exp.AliasedExpression {
	return goqu.Cast(goqu.C(col), "TEXT").As(col)
}

func (t *pgTx) books() *goqu.SelectDataset {
	return t.dialect.From("books").Prepared(true).Select(
		textID("id"), "title", "author", "isbn", "genre", "year", "description",
		"cover_url", "total_copies", "available_copies", "created_at",
	)
}

func (t *pgTx) members() *goqu.SelectDataset {
	return t.dialect.From("members").Prepared(true).Select(
		textID("id"), "name", "email", "phone", "membership_type", "join_date", "active",
	)
}

func (t *pgTx) borrowings() *goqu.SelectDataset {
	return t.dialect.From("borrowings").Prepared(true).Select(
		textID("id"), textID("book_id"), textID("member_id"), "book_title", "book_author",
		"member_name", "member_email", "borrow_date", "due_date", "return_date", "status",
	)
}

// locked adds FOR UPDATE inside write transactions.
func (t *pgTx) locked(ds *goqu.SelectDataset) *goqu.SelectDataset {
	if t.readOnly {
		return ds
	}
	return ds.ForUpdate(exp.Wait)
}

func (t *pgTx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *pgTx) exec(ctx context.Context, op string, b sqlBuilder) (pgconn.CommandTag, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("%s: build query: %w", op, err)
	}
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return tag, pgWriteErr(op, err)
	}
	return tag, nil
}

func collectOne[T any](ctx context.Context, t *pgTx, b sqlBuilder) (T, error) {
	var zero T
	query, args, err := b.ToSQL()
	if err != nil {
		return zero, fmt.Errorf("build query: %w", err)
	}
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return zero, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
}

func collectAll[T any](ctx context.Context, t *pgTx, b sqlBuilder) ([]T, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[T])
}

func containsFold(col, q string) exp.BooleanExpression {
	return goqu.Func("STRPOS", goqu.Func("LOWER", goqu.C(col)), q).Gt(0)
}

func (t *pgTx) GetBook(ctx context.Context, id string) (domain.Book, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return domain.Book{}, domain.NotFound("book", id)
	}
	row, err := collectOne[pgBook](ctx, t, t.locked(t.books().Where(goqu.C("id").Eq(key))))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Book{}, domain.NotFound("book", id)
	}
	if err != nil {
		return domain.Book{}, fmt.Errorf("get book: %w", err)
	}
	return row.toDomain(), nil
}

func (t *pgTx) ListBooks(ctx context.Context, f domain.BookFilter) ([]domain.Book, error) {
	ds := t.books().Order(goqu.C("seq").Asc())
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		ds = ds.Where(goqu.Or(containsFold("title", q), containsFold("author", q), containsFold("isbn", q)))
	}
	if f.Genre != "" {
		ds = ds.Where(goqu.C("genre").Eq(f.Genre))
	}
	rows, err := collectAll[pgBook](ctx, t, ds)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	out := make([]domain.Book, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (t *pgTx) InsertBook(ctx context.Context, b domain.Book) error {
	if err := t.writable(); err != nil {
		return err
	}
	key, err := uuid.Parse(b.ID)
	if err != nil {
		return domain.Invalidf("book id %q is not a uuid", b.ID)
	}
	_, err = t.exec(ctx, "insert book", t.dialect.Insert("books").Prepared(true).Rows(goqu.Record{
		"id":               key,
		"title":            b.Title,
		"author":           b.Author,
		"isbn":             b.ISBN,
		"genre":            b.Genre,
		"year":             b.Year,
		"description":      b.Description,
		"cover_url":        b.CoverURL,
		"total_copies":     b.TotalCopies,
		"available_copies": b.AvailableCopies,
		"created_at":       b.CreatedAt.UTC(),
	}))
	return err
}

func (t *pgTx) UpdateBook(ctx context.Context, b domain.Book) error {
	if err := t.writable(); err != nil {
		return err
	}
	key, err := uuid.Parse(b.ID)
	if err != nil {
		return domain.NotFound("book", b.ID)
	}
	tag, err := t.exec(ctx, "update book", t.dialect.Update("books").Prepared(true).Set(goqu.Record{
		"title":            b.Title,
		"author":           b.Author,
		"isbn":             b.ISBN,
		"genre":            b.Genre,
		"year":             b.Year,
		"description":      b.Description,
		"cover_url":        b.CoverURL,
		"total_copies":     b.TotalCopies,
		"available_copies": b.AvailableCopies,
	}).Where(goqu.C("id").Eq(key)))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("book", b.ID)
	}
	return nil
}

func (t *pgTx) DeleteBook(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	key, err := uuid.Parse(id)
	if err != nil {
		return domain.NotFound("book", id)
	}
	tag, err := t.exec(ctx, "delete book", t.dialect.Delete("books").Prepared(true).Where(goqu.C("id").Eq(key)))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("book", id)
	}
	return nil
}

func (t *pgTx) GetMember(ctx context.Context, id string) (domain.Member, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return domain.Member{}, domain.NotFound("member", id)
	}
	row, err := collectOne[pgMember](ctx, t, t.locked(t.members().Where(goqu.C("id").Eq(key))))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Member{}, domain.NotFound("member", id)
	}
	if err != nil {
		return domain.Member{}, fmt.Errorf("get member: %w", err)
	}
	return row.toDomain(), nil
}

func (t *pgTx) FindMemberByEmail(ctx context.Context, email string) (domain.Member, error) {
	ds := t.members().Where(goqu.Func("LOWER", goqu.C("email")).Eq(strings.ToLower(email)))
	row, err := collectOne[pgMember](ctx, t, ds)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Member{}, domain.NotFound("member", email)
	}
	if err != nil {
		return domain.Member{}, fmt.Errorf("find member: %w", err)
	}
	return row.toDomain(), nil
}

func (t *pgTx) ListMembers(ctx context.Context, f domain.MemberFilter) ([]domain.Member, error) {
	ds := t.members().Order(goqu.C("seq").Asc())
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		ds = ds.Where(goqu.Or(containsFold("name", q), containsFold("email", q)))
	}
	rows, err := collectAll[pgMember](ctx, t, ds)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	out := make([]domain.Member, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (t *pgTx) InsertMember(ctx context.Context, m domain.Member) error {
	if err := t.writable(); err != nil {
		return err
	}
	key, err := uuid.Parse(m.ID)
	if err != nil {
		return domain.Invalidf("member id %q is not a uuid", m.ID)
	}
	_, err = t.exec(ctx, "insert member", t.dialect.Insert("members").Prepared(true).Rows(goqu.Record{
		"id":              key,
		"name":            m.Name,
		"email":           m.Email,
		"phone":           m.Phone,
		"membership_type": string(m.MembershipType),
		"join_date":       m.JoinDate.Time(),
		"active":          m.Active,
	}))
	return err
}

func (t *pgTx) DeleteMember(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	key, err := uuid.Parse(id)
	if err != nil {
		return domain.NotFound("member", id)
	}
	tag, err := t.exec(ctx, "delete member", t.dialect.Delete("members").Prepared(true).Where(goqu.C("id").Eq(key)))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("member", id)
	}
	return nil
}

func (t *pgTx) GetBorrowing(ctx context.Context, id string) (domain.Borrowing, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return domain.Borrowing{}, domain.NotFound("borrowing", id)
	}
	row, err := collectOne[pgBorrowing](ctx, t, t.locked(t.borrowings().Where(goqu.C("id").Eq(key))))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Borrowing{}, domain.NotFound("borrowing", id)
	}
	if err != nil {
		return domain.Borrowing{}, fmt.Errorf("get borrowing: %w", err)
	}
	return row.toDomain(), nil
}

func (t *pgTx) ListBorrowings(ctx context.Context, f domain.BorrowingFilter) ([]domain.Borrowing, error) {
	ds := t.borrowings().Order(goqu.C("seq").Desc())
	switch f.Status {
	case domain.FilterBorrowed:
		ds = ds.Where(goqu.C("status").Eq(string(domain.StatusBorrowed)))
	case domain.FilterReturned:
		ds = ds.Where(goqu.C("status").Eq(string(domain.StatusReturned)))
	}
	for col, id := range map[string]string{"book_id": f.BookID, "member_id": f.MemberID} {
		if id == "" {
			continue
		}
		key, err := uuid.Parse(id)
		if err != nil {
			return []domain.Borrowing{}, nil
		}
		ds = ds.Where(goqu.C(col).Eq(key))
	}
	rows, err := collectAll[pgBorrowing](ctx, t, ds)
	if err != nil {
		return nil, fmt.Errorf("list borrowings: %w", err)
	}
	out := make([]domain.Borrowing, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (t *pgTx) InsertBorrowing(ctx context.Context, b domain.Borrowing) error {
	if err := t.writable(); err != nil {
		return err
	}
	key, err := uuid.Parse(b.ID)
	if err != nil {
		return domain.Invalidf("borrowing id %q is not a uuid", b.ID)
	}
	bookKey, err := uuid.Parse(b.BookID)
	if err != nil {
		return domain.NotFound("book", b.BookID)
	}
	memberKey, err := uuid.Parse(b.MemberID)
	if err != nil {
		return domain.NotFound("member", b.MemberID)
	}
	_, err = t.exec(ctx, "insert borrowing", t.dialect.Insert("borrowings").Prepared(true).Rows(goqu.Record{
		"id":           key,
		"book_id":      bookKey,
		"member_id":    memberKey,
		"book_title":   b.BookTitle,
		"book_author":  b.BookAuthor,
		"member_name":  b.MemberName,
		"member_email": b.MemberEmail,
		"borrow_date":  b.BorrowDate.Time(),
		"due_date":     b.DueDate.Time(),
		"return_date":  nullableTime(b.ReturnDate),
		"status":       string(b.Status),
	}))
	return err
}

func (t *pgTx) UpdateBorrowing(ctx context.Context, b domain.Borrowing) error {
	if err := t.writable(); err != nil {
		return err
	}
	key, err := uuid.Parse(b.ID)
	if err != nil {
		return domain.NotFound("borrowing", b.ID)
	}
	tag, err := t.exec(ctx, "update borrowing", t.dialect.Update("borrowings").Prepared(true).Set(goqu.Record{
		"due_date":    b.DueDate.Time(),
		"return_date": nullableTime(b.ReturnDate),
		"status":      string(b.Status),
	}).Where(goqu.C("id").Eq(key)))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("borrowing", b.ID)
	}
	return nil
}

func nullableTime(d *domain.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time()
	return &t
}

// pgWriteErr maps unique (23505) and check (23514) violations onto domain sentinels.
func pgWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrConflict, err))
		case "23514":
			return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrInvariant, err))
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
