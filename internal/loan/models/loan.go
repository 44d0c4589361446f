package models

import (
	"time"

	id "smartlib/pkg/domain"
	dErrors "smartlib/pkg/domain-errors"
)

// MaxExtensions is the number of times a loan's due date may be pushed back.
const MaxExtensions = 2

// Loan records one copy of a book lent to a user.
//
// Invariants:
//   - UserID, BookID and IssueDate never change after creation
//   - ReturnDate is set if and only if Status is RETURNED, and is set once
//   - Status only moves ACTIVE -> RETURNED
//   - ExtensionsCount is in [0, MaxExtensions]
//   - while ACTIVE, exactly one unit of the book's availability is reserved for it
type Loan struct {
	ID              id.LoanID  `json:"id"`
	UserID          id.UserID  `json:"user_id"`
	BookID          id.BookID  `json:"book_id"`
	IssueDate       time.Time  `json:"issue_date"`
	DueDate         time.Time  `json:"due_date"`
	ReturnDate      *time.Time `json:"return_date"`
	Status          Status     `json:"status"`
	ExtensionsCount int        `json:"extensions_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewLoan builds an ACTIVE loan issued at now.
func NewLoan(loanID id.LoanID, userID id.UserID, bookID id.BookID, dueDate, now time.Time) (*Loan, error) {
	if userID.IsNil() || bookID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "loan requires a user and a book")
	}
	if !dueDate.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "due_date must be in the future").
			WithReason(ReasonInvalidRequest)
	}
	return &Loan{
		ID:        loanID,
		UserID:    userID,
		BookID:    bookID,
		IssueDate: now,
		DueDate:   dueDate,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (l *Loan) IsActive() bool {
	return l.Status == StatusActive
}

// CanReturn reports whether the loan may be marked returned.
func (l *Loan) CanReturn() error {
	if !l.Status.CanTransitionTo(StatusReturned) {
		return ErrAlreadyReturned()
	}
	return nil
}

// ApplyReturn marks the loan returned at now. Call CanReturn first.
func (l *Loan) ApplyReturn(now time.Time) {
	returned := now
	l.Status = StatusReturned
	l.ReturnDate = &returned
	l.UpdatedAt = now
}

// CanExtend checks the extension policy for days at now.
func (l *Loan) CanExtend(days int, now time.Time) error {
	return CheckExtension(l, days, now)
}

// ApplyExtension pushes the due date back by days. Call CanExtend first.
func (l *Loan) ApplyExtension(days int, now time.Time) {
	l.DueDate = ExtendedDueDate(l.DueDate, days)
	l.ExtensionsCount++
	l.UpdatedAt = now
}

// Clone returns a deep copy so callers cannot alias store state.
func (l *Loan) Clone() *Loan {
	cp := *l
	if l.ReturnDate != nil {
		rd := *l.ReturnDate
		cp.ReturnDate = &rd
	}
	return &cp
}

// Filter narrows a loan listing. Nil fields match everything.
type Filter struct {
	Status *Status
	UserID *id.UserID
}

// Matches reports whether l passes the filter.
func (f Filter) Matches(l *Loan) bool {
	if f.Status != nil && l.Status != *f.Status {
		return false
	}
	if f.UserID != nil && l.UserID != *f.UserID {
		return false
	}
	return true
}
