package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // registers the postgres dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // registers the sqlite3 dialect
	"github.com/google/uuid"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"smartlib/internal/loan/models"
	id "smartlib/pkg/domain"
	"smartlib/pkg/platform/sentinel"
)

const (
	tableLoans = "loans"

	colID              = "id"
	colUserID          = "user_id"
	colBookID          = "book_id"
	colIssueDate       = "issue_date"
	colDueDate         = "due_date"
	colReturnDate      = "return_date"
	colStatus          = "status"
	colExtensionsCount = "extensions_count"
	colCreatedAt       = "created_at"
	colUpdatedAt       = "updated_at"

	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite3"

	pqUniqueViolation = "23505"
)

var loanColumns = []any{
	colID, colUserID, colBookID, colIssueDate, colDueDate, colReturnDate,
	colStatus, colExtensionsCount, colCreatedAt, colUpdatedAt,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS loans (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		book_id UUID NOT NULL,
		issue_date TIMESTAMPTZ NOT NULL,
		due_date TIMESTAMPTZ NOT NULL,
		return_date TIMESTAMPTZ NULL,
		status TEXT NOT NULL CHECK (status IN ('ACTIVE', 'RETURNED')),
		extensions_count INTEGER NOT NULL DEFAULT 0 CHECK (extensions_count BETWEEN 0 AND 2),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK ((status = 'RETURNED') = (return_date IS NOT NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS loans_user_id_idx ON loans (user_id)`,
	`CREATE INDEX IF NOT EXISTS loans_status_idx ON loans (status)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		book_id TEXT NOT NULL,
		issue_date TIMESTAMP NOT NULL,
		due_date TIMESTAMP NOT NULL,
		return_date TIMESTAMP NULL,
		status TEXT NOT NULL CHECK (status IN ('ACTIVE', 'RETURNED')),
		extensions_count INTEGER NOT NULL DEFAULT 0 CHECK (extensions_count BETWEEN 0 AND 2),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		CHECK ((status = 'RETURNED') = (return_date IS NOT NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS loans_user_id_idx ON loans (user_id)`,
	`CREATE INDEX IF NOT EXISTS loans_status_idx ON loans (status)`,
}

// SQLStore persists loans through database/sql. The same queries serve PostgreSQL
// (lib/pq) and SQLite (modernc) by switching the goqu dialect.
// This store is pure I/O; state rules live in the ledger.
type SQLStore struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
	schema  []string
}

// NewPostgres builds a store for a database opened with the "postgres" driver.
func NewPostgres(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: goqu.Dialect(dialectPostgres), schema: postgresSchema}
}

// NewSQLite builds a store for a database opened with the "sqlite" driver.
func NewSQLite(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: goqu.Dialect(dialectSQLite), schema: sqliteSchema}
}

// Migrate creates the loans table and its indexes if they are missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate loans: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Create(ctx context.Context, loan *models.Loan) error {
	query, args, err := s.dialect.Insert(tableLoans).Prepared(true).Rows(goqu.Record{
		colID:              loan.ID.String(),
		colUserID:          loan.UserID.String(),
		colBookID:          loan.BookID.String(),
		colIssueDate:       loan.IssueDate.UTC(),
		colDueDate:         loan.DueDate.UTC(),
		colReturnDate:      nullTime(loan.ReturnDate),
		colStatus:          string(loan.Status),
		colExtensionsCount: loan.ExtensionsCount,
		colCreatedAt:       loan.CreatedAt.UTC(),
		colUpdatedAt:       loan.UpdatedAt.UTC(),
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert loan: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert loan %s: %w", loan.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func (s *SQLStore) FindByID(ctx context.Context, loanID id.LoanID) (*models.Loan, error) {
	query, args, err := s.dialect.From(tableLoans).Prepared(true).
		Select(loanColumns...).
		Where(goqu.C(colID).Eq(loanID.String())).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build find loan: %w", err)
	}
	loan, err := scanLoan(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find loan: %w", err)
	}
	return loan, nil
}

// List returns matching loans ordered by creation time.
func (s *SQLStore) List(ctx context.Context, filter models.Filter) ([]*models.Loan, error) {
	ds := s.dialect.From(tableLoans).Prepared(true).
		Select(loanColumns...).
		Order(goqu.I(colCreatedAt).Asc(), goqu.I(colID).Asc())
	if filter.Status != nil {
		ds = ds.Where(goqu.C(colStatus).Eq(string(*filter.Status)))
	}
	if filter.UserID != nil {
		ds = ds.Where(goqu.C(colUserID).Eq(filter.UserID.String()))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list loans: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Loan, 0)
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		out = append(out, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans: %w", err)
	}
	return out, nil
}

// MarkReturned flips an ACTIVE loan to RETURNED in one conditional UPDATE.
func (s *SQLStore) MarkReturned(ctx context.Context, loanID id.LoanID, returnedAt time.Time) error {
	query, args, err := s.dialect.Update(tableLoans).Prepared(true).
		Set(goqu.Record{
			colStatus:     string(models.StatusReturned),
			colReturnDate: returnedAt.UTC(),
			colUpdatedAt:  returnedAt.UTC(),
		}).
		Where(
			goqu.C(colID).Eq(loanID.String()),
			goqu.C(colStatus).Eq(string(models.StatusActive)),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build mark returned: %w", err)
	}
	applied, err := s.execConditional(ctx, query, args)
	if err != nil {
		return fmt.Errorf("mark loan returned: %w", err)
	}
	if applied {
		return nil
	}
	if _, err := s.FindByID(ctx, loanID); err != nil {
		return err
	}
	return sentinel.ErrInvalidState
}

// Extend moves the due date if the loan is still ACTIVE and nobody else extended it
// since expectedCount was observed.
func (s *SQLStore) Extend(ctx context.Context, loanID id.LoanID, newDue time.Time, expectedCount int, now time.Time) error {
	query, args, err := s.dialect.Update(tableLoans).Prepared(true).
		Set(goqu.Record{
			colDueDate:         newDue.UTC(),
			colExtensionsCount: expectedCount + 1,
			colUpdatedAt:       now.UTC(),
		}).
		Where(
			goqu.C(colID).Eq(loanID.String()),
			goqu.C(colStatus).Eq(string(models.StatusActive)),
			goqu.C(colExtensionsCount).Eq(expectedCount),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build extend loan: %w", err)
	}
	applied, err := s.execConditional(ctx, query, args)
	if err != nil {
		return fmt.Errorf("extend loan: %w", err)
	}
	if applied {
		return nil
	}
	if _, err := s.FindByID(ctx, loanID); err != nil {
		return err
	}
	return sentinel.ErrConflict
}

func (s *SQLStore) execConditional(ctx context.Context, query string, args []any) (bool, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	var (
		rawID, rawUserID, rawBookID string
		status                      string
		loan                        models.Loan
		returnDate                  sql.NullTime
	)
	if err := row.Scan(
		&rawID, &rawUserID, &rawBookID,
		&loan.IssueDate, &loan.DueDate, &returnDate,
		&status, &loan.ExtensionsCount,
		&loan.CreatedAt, &loan.UpdatedAt,
	); err != nil {
		return nil, err
	}

	loanUUID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse loan id: %w", err)
	}
	userUUID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	bookUUID, err := uuid.Parse(rawBookID)
	if err != nil {
		return nil, fmt.Errorf("parse book id: %w", err)
	}
	loan.ID = id.LoanID(loanUUID)
	loan.UserID = id.UserID(userUUID)
	loan.BookID = id.BookID(bookUUID)
	loan.Status = models.Status(status)
	loan.IssueDate = loan.IssueDate.UTC()
	loan.DueDate = loan.DueDate.UTC()
	loan.CreatedAt = loan.CreatedAt.UTC()
	loan.UpdatedAt = loan.UpdatedAt.UTC()
	if returnDate.Valid {
		rd := returnDate.Time.UTC()
		loan.ReturnDate = &rd
	}
	return &loan, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}
