// Package ledger owns loan records and their state machine. Every mutation is a
// single conditional write against the store; nothing here talks to the network.
package ledger

import (
	"context"
	"errors"
	"time"

	"smartlib/internal/loan/models"
	id "smartlib/pkg/domain"
	"smartlib/pkg/platform/sentinel"
)

// extendAttempts bounds how often Extend re-reads after losing a race.
const extendAttempts = 3

// Store is the persistence port. Implementations return sentinel errors.
type Store interface {
	Create(ctx context.Context, loan *models.Loan) error
	FindByID(ctx context.Context, loanID id.LoanID) (*models.Loan, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Loan, error)
	MarkReturned(ctx context.Context, loanID id.LoanID, returnedAt time.Time) error
	Extend(ctx context.Context, loanID id.LoanID, newDue time.Time, expectedCount int, now time.Time) error
}

type Ledger struct {
	store Store
	newID func() id.LoanID
}

type Option func(*Ledger)

// WithIDGenerator overrides loan ID generation.
func WithIDGenerator(fn func() id.LoanID) Option {
	return func(l *Ledger) { l.newID = fn }
}

func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, newID: id.NewLoanID}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create records a new ACTIVE loan issued at now.
func (l *Ledger) Create(ctx context.Context, userID id.UserID, bookID id.BookID, dueDate, now time.Time) (*models.Loan, error) {
	loan, err := models.NewLoan(l.newID(), userID, bookID, dueDate, now)
	if err != nil {
		return nil, err
	}
	if err := l.store.Create(ctx, loan); err != nil {
		return nil, models.ErrPersistence(err, "failed to record loan")
	}
	return loan, nil
}

func (l *Ledger) FindByID(ctx context.Context, loanID id.LoanID) (*models.Loan, error) {
	loan, err := l.store.FindByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrLoanNotFound()
		}
		return nil, models.ErrPersistence(err, "failed to load loan")
	}
	return loan, nil
}

func (l *Ledger) ListAll(ctx context.Context) ([]*models.Loan, error) {
	return l.list(ctx, models.Filter{})
}

func (l *Ledger) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Loan, error) {
	return l.list(ctx, models.Filter{UserID: &userID})
}

func (l *Ledger) ListByStatus(ctx context.Context, status models.Status) ([]*models.Loan, error) {
	return l.list(ctx, models.Filter{Status: &status})
}

// ListOverdue returns active loans whose due date is before now.
func (l *Ledger) ListOverdue(ctx context.Context, now time.Time) ([]*models.Loan, error) {
	active, err := l.ListByStatus(ctx, models.StatusActive)
	if err != nil {
		return nil, err
	}
	overdue := make([]*models.Loan, 0, len(active))
	for _, loan := range active {
		if models.IsOverdue(loan, now) {
			overdue = append(overdue, loan)
		}
	}
	return overdue, nil
}

// MarkReturned moves an ACTIVE loan to RETURNED with returnDate=now.
func (l *Ledger) MarkReturned(ctx context.Context, loanID id.LoanID, now time.Time) (*models.Loan, error) {
	loan, err := l.FindByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if err := loan.CanReturn(); err != nil {
		return nil, err
	}
	if err := l.store.MarkReturned(ctx, loanID, now); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, models.ErrAlreadyReturned()
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, models.ErrLoanNotFound()
		default:
			return nil, models.ErrPersistence(err, "failed to mark loan returned")
		}
	}
	loan.ApplyReturn(now)
	return loan, nil
}

// Extend pushes the due date back by days. The write is guarded by the
// extension count that was checked, so two concurrent extensions cannot both
// pass the limit; the loser re-reads and re-checks.
func (l *Ledger) Extend(ctx context.Context, loanID id.LoanID, days int, now time.Time) (*models.Extension, error) {
	for attempt := 0; attempt < extendAttempts; attempt++ {
		loan, err := l.FindByID(ctx, loanID)
		if err != nil {
			return nil, err
		}
		if err := loan.CanExtend(days, now); err != nil {
			return nil, err
		}

		original := loan.DueDate
		newDue := models.ExtendedDueDate(loan.DueDate, days)
		err = l.store.Extend(ctx, loanID, newDue, loan.ExtensionsCount, now)
		switch {
		case err == nil:
			loan.ApplyExtension(days, now)
			return &models.Extension{Loan: loan, OriginalDueDate: original}, nil
		case errors.Is(err, sentinel.ErrConflict):
			continue
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, models.ErrLoanNotFound()
		default:
			return nil, models.ErrPersistence(err, "failed to extend loan")
		}
	}
	return nil, models.ErrPersistence(sentinel.ErrConflict, "loan changed concurrently, retry the extension")
}

func (l *Ledger) list(ctx context.Context, filter models.Filter) ([]*models.Loan, error) {
	loans, err := l.store.List(ctx, filter)
	if err != nil {
		return nil, models.ErrPersistence(err, "failed to list loans")
	}
	return loans, nil
}
