package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartlib/internal/inventory/models"
	id "smartlib/pkg/domain"
	"smartlib/pkg/platform/sentinel"
)

const booksSchema = `
	CREATE TABLE IF NOT EXISTS books (
		id               UUID PRIMARY KEY,
		title            TEXT NOT NULL,
		author           TEXT NOT NULL DEFAULT '',
		isbn             TEXT NOT NULL DEFAULT '',
		total_copies     INTEGER NOT NULL CHECK (total_copies >= 0),
		available_copies INTEGER NOT NULL CHECK (available_copies >= 0 AND available_copies <= total_copies),
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)
`

const (
	bookColumns       = `id, title, author, isbn, total_copies, available_copies, created_at, updated_at`
	bookSelectColumns = `id::text, title, author, isbn, total_copies, available_copies, created_at, updated_at`
)

// PostgresStore keeps books in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the books table if it is missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, booksSchema); err != nil {
		return fmt.Errorf("migrate books: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, book *models.Book) error {
	query := `INSERT INTO books (` + bookColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, query,
		book.ID.String(),
		book.Title,
		book.Author,
		book.ISBN,
		book.TotalCopies,
		book.AvailableCopies,
		book.CreatedAt.UTC(),
		book.UpdatedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("insert book %s: %w", book.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, bookID id.BookID) (*models.Book, error) {
	query := `SELECT ` + bookSelectColumns + ` FROM books WHERE id = $1`
	book, err := scanBook(s.pool.QueryRow(ctx, query, bookID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find book: %w", err)
	}
	return book, nil
}

// Adjust is a single conditional UPDATE; the bound check and the write cannot
// be separated by a concurrent adjustment.
func (s *PostgresStore) Adjust(ctx context.Context, bookID id.BookID, op models.Operation, now time.Time) (*models.Book, error) {
	query := `
		UPDATE books
		SET available_copies = available_copies + $2, updated_at = $3
		WHERE id = $1
		  AND available_copies + $2 >= 0
		  AND available_copies + $2 <= total_copies
		RETURNING ` + bookSelectColumns
	book, err := scanBook(s.pool.QueryRow(ctx, query, bookID.String(), op.Delta(), now.UTC()))
	if err == nil {
		return book, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("adjust book availability: %w", err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, bookID.String()).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check book exists: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrInvalidState
}

func scanBook(row pgx.Row) (*models.Book, error) {
	var (
		rawID string
		book  models.Book
	)
	if err := row.Scan(
		&rawID,
		&book.Title,
		&book.Author,
		&book.ISBN,
		&book.TotalCopies,
		&book.AvailableCopies,
		&book.CreatedAt,
		&book.UpdatedAt,
	); err != nil {
		return nil, err
	}
	bookID, err := id.ParseBookID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan book id: %w", err)
	}
	book.ID = bookID
	book.CreatedAt = book.CreatedAt.UTC()
	book.UpdatedAt = book.UpdatedAt.UTC()
	return &book, nil
}
