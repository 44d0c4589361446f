// Package models holds the inventory's book record and its availability rules.
package models

import (
	"strings"
	"time"

	id "smartlib/pkg/domain"
	dErrors "smartlib/pkg/domain-errors"
)

// Reasons attached to inventory errors.
const (
	ReasonBookNotFound       = "book_not_found"
	ReasonNoCopiesAvailable  = "no_copies_available"
	ReasonAvailabilityAtMax  = "availability_at_total"
	ReasonInvalidOperation   = "invalid_operation"
	ReasonInvalidBook        = "invalid_book"
	ReasonBookAlreadyExists  = "book_already_exists"
	ReasonPersistenceFailure = "persistence_failure"
)

// Operation is a single-unit availability change.
type Operation string

const (
	OperationDecrement Operation = "decrement"
	OperationIncrement Operation = "increment"
)

// ParseOperation accepts decrement or increment, case-insensitively.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	switch op {
	case OperationDecrement, OperationIncrement:
		return op, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "operation must be decrement or increment").
		WithReason(ReasonInvalidOperation)
}

// Delta is the change the operation applies to available copies.
func (o Operation) Delta() int {
	if o == OperationDecrement {
		return -1
	}
	return 1
}

// Book is a title and its copy counts.
//
// Invariant: 0 <= AvailableCopies <= TotalCopies.
type Book struct {
	ID              id.BookID
	Title           string
	Author          string
	ISBN            string
	TotalCopies     int
	AvailableCopies int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewBook creates a book with every copy available.
func NewBook(bookID id.BookID, title, author, isbn string, copies int, now time.Time) (*Book, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title is required").WithReason(ReasonInvalidBook)
	}
	if copies < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "copies must not be negative").WithReason(ReasonInvalidBook)
	}
	return &Book{
		ID:              bookID,
		Title:           title,
		Author:          strings.TrimSpace(author),
		ISBN:            strings.TrimSpace(isbn),
		TotalCopies:     copies,
		AvailableCopies: copies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CanApply reports whether op keeps availability within [0, TotalCopies].
func (b *Book) CanApply(op Operation) error {
	next := b.AvailableCopies + op.Delta()
	if next < 0 {
		return ErrNoCopiesAvailable()
	}
	if next > b.TotalCopies {
		return ErrAvailabilityAtTotal()
	}
	return nil
}

// Apply changes availability. Call CanApply first.
func (b *Book) Apply(op Operation, now time.Time) {
	b.AvailableCopies += op.Delta()
	b.UpdatedAt = now
}

func (b *Book) Clone() *Book {
	cp := *b
	return &cp
}

func ErrBookNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "book not found").WithReason(ReasonBookNotFound)
}

func ErrNoCopiesAvailable() error {
	return dErrors.New(dErrors.CodeInvalidState, "no copies available").WithReason(ReasonNoCopiesAvailable)
}

func ErrAvailabilityAtTotal() error {
	return dErrors.New(dErrors.CodeInvalidState, "available copies cannot exceed total copies").
		WithReason(ReasonAvailabilityAtMax)
}
