// Package ports defines the interfaces the loan saga depends on. Remote
// collaborators return sentinel errors (ErrNotFound, ErrRejected, ErrUnavailable);
// the ledger returns domain errors.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"smartlib/internal/loan/models"
	id "smartlib/pkg/domain"
)

// Identity resolves users.
type Identity interface {
	GetUser(ctx context.Context, userID id.UserID) (*models.UserSummary, error)
}

// Inventory reads books and adjusts their availability by one unit.
type Inventory interface {
	GetBook(ctx context.Context, bookID id.BookID) (*models.Book, error)
	AdjustAvailability(ctx context.Context, bookID id.BookID, op models.AvailabilityOperation) (*models.Availability, error)
}

// Ledger owns loan records.
type Ledger interface {
	Create(ctx context.Context, userID id.UserID, bookID id.BookID, dueDate, now time.Time) (*models.Loan, error)
	FindByID(ctx context.Context, loanID id.LoanID) (*models.Loan, error)
	ListAll(ctx context.Context) ([]*models.Loan, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Loan, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Loan, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*models.Loan, error)
	MarkReturned(ctx context.Context, loanID id.LoanID, now time.Time) (*models.Loan, error)
	Extend(ctx context.Context, loanID id.LoanID, days int, now time.Time) (*models.Extension, error)
}

// BookCache holds book summaries for enrichment. Get returns sentinel.ErrNotFound on a miss.
type BookCache interface {
	Get(ctx context.Context, bookID id.BookID) (*models.BookSummary, error)
	Set(ctx context.Context, summary models.BookSummary) error
}

// EventPublisher emits loan lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, evt models.LoanEvent) error
}
