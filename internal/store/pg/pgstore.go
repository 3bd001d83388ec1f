package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tasdeeq.app/internal/kyc"
)

const pgErrUniqueViolation = "23505"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	q  querier
	tx bool
}

var _ kyc.Store = (*Store)(nil)

// PoolConfig tunes the database/sql connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPool returns the pool defaults used in production.
func DefaultPool() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    50,
		MaxIdleConns:    25,
		ConnMaxLifetime: 15 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

func Open(dsn string, pool PoolConfig) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping is used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// InTx runs fn inside one serializable transaction. Nested calls reuse the
// outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx kyc.Store) error) error {
	if s.tx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Store{db: s.db, q: tx, tx: true}); err != nil {
		return err
	}
	return tx.Commit()
}

const caseColumns = `id, user_id, national_id_front, national_id_back, passport_url, selfie_url,
	status, reviewer_id, reviewer_notes, rejection_reason, submitted_at, updated_at, decided_at`

func (s *Store) CreateCase(ctx context.Context, c kyc.Case) error {
	front, back := nationalID(c.Documents)
	_, err := s.q.ExecContext(ctx, `
		insert into kyc_cases (`+caseColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, c.ID, c.UserID, front, back, c.Documents.PassportURL, c.Documents.SelfieURL,
		string(c.Status), c.ReviewerID, c.ReviewerNotes, c.RejectionReason,
		c.SubmittedAt, c.UpdatedAt, nullTime(c.DecidedAt))
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return fmt.Errorf("case %s already exists: %w", c.ID, err)
	}
	return err
}

func (s *Store) UpdateCase(ctx context.Context, c kyc.Case) error {
	front, back := nationalID(c.Documents)
	res, err := s.q.ExecContext(ctx, `
		update kyc_cases
		set national_id_front=$2, national_id_back=$3, passport_url=$4, selfie_url=$5,
			status=$6, reviewer_id=$7, reviewer_notes=$8, rejection_reason=$9,
			submitted_at=$10, updated_at=$11, decided_at=$12
		where id=$1
	`, c.ID, front, back, c.Documents.PassportURL, c.Documents.SelfieURL,
		string(c.Status), c.ReviewerID, c.ReviewerNotes, c.RejectionReason,
		c.SubmittedAt, c.UpdatedAt, nullTime(c.DecidedAt))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &kyc.NotFoundError{Kind: "case", ID: c.ID}
	}
	return nil
}

func (s *Store) GetCase(ctx context.Context, id string) (kyc.Case, error) {
	row := s.q.QueryRowContext(ctx, `select `+caseColumns+` from kyc_cases where id=$1`, id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return kyc.Case{}, &kyc.NotFoundError{Kind: "case", ID: id}
	}
	return c, err
}

func (s *Store) LatestCaseForUser(ctx context.Context, userID string) (kyc.Case, error) {
	row := s.q.QueryRowContext(ctx, `
		select `+caseColumns+`
		from kyc_cases
		where user_id=$1
		order by submitted_at desc, id desc
		limit 1
	`, userID)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return kyc.Case{}, &kyc.NotFoundError{Kind: "case for user", ID: userID}
	}
	return c, err
}

func (s *Store) ListCases(ctx context.Context, filter kyc.CaseFilter) ([]kyc.Case, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		args = append(args, escapeLike(search)+"%")
		where = append(where, fmt.Sprintf("(lower(id) like $%d or lower(user_id) like $%d)", len(args), len(args)))
	}
	query := `select ` + caseColumns + ` from kyc_cases`
	if len(where) > 0 {
		query += ` where ` + strings.Join(where, " and ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(` order by submitted_at desc, id desc limit $%d`, len(args))

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kyc.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CountByStatus(ctx context.Context) (map[kyc.Status]int, error) {
	rows, err := s.q.QueryContext(ctx, `select status, count(*) from kyc_cases group by status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[kyc.Status]int, len(kyc.Statuses))
	for _, st := range kyc.Statuses {
		counts[st] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[kyc.Status(status)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCase(row scanner) (kyc.Case, error) {
	var (
		c           kyc.Case
		front, back sql.NullString
		status      string
		decided     sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.UserID, &front, &back, &c.Documents.PassportURL, &c.Documents.SelfieURL,
		&status, &c.ReviewerID, &c.ReviewerNotes, &c.RejectionReason,
		&c.SubmittedAt, &c.UpdatedAt, &decided); err != nil {
		return kyc.Case{}, err
	}
	c.Status = kyc.Status(status)
	if front.Valid || back.Valid {
		c.Documents.NationalID = &kyc.TwoSided{FrontURL: front.String, BackURL: back.String}
	}
	if decided.Valid {
		at := decided.Time.UTC()
		c.DecidedAt = &at
	}
	c.SubmittedAt = c.SubmittedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// --- helpers ---
func nationalID(d kyc.Documents) (sql.NullString, sql.NullString) {
	if d.NationalID == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: d.NationalID.FrontURL, Valid: true},
		sql.NullString{String: d.NationalID.BackURL, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
