package models

import (
	"time"

	id "smartlib/pkg/domain"
)

// UnknownPlaceholder stands in for book or user fields that could not be fetched.
const UnknownPlaceholder = "Unknown"

// AvailabilityOperation is the operation tag sent to the inventory adjust endpoint.
type AvailabilityOperation string

const (
	OperationDecrement AvailabilityOperation = "decrement"
	OperationIncrement AvailabilityOperation = "increment"
)

// Book is the inventory's view of a title as seen by the loan service.
type Book struct {
	ID              id.BookID
	Title           string
	Author          string
	TotalCopies     int
	AvailableCopies int
}

// Summary projects the fields used to enrich loan responses.
func (b *Book) Summary() BookSummary {
	return BookSummary{ID: b.ID, Title: b.Title, Author: b.Author}
}

// Availability is the inventory's reply to an adjust.
type Availability struct {
	BookID          id.BookID
	AvailableCopies int
	UpdatedAt       time.Time
}

type BookSummary struct {
	ID     id.BookID `json:"id"`
	Title  string    `json:"title"`
	Author string    `json:"author"`
}

// UnknownBook is the enrichment placeholder for bookID.
func UnknownBook(bookID id.BookID) BookSummary {
	return BookSummary{ID: bookID, Title: UnknownPlaceholder, Author: UnknownPlaceholder}
}

type UserSummary struct {
	ID    id.UserID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// UnknownUser is the enrichment placeholder for userID.
func UnknownUser(userID id.UserID) UserSummary {
	return UserSummary{ID: userID, Name: UnknownPlaceholder, Email: UnknownPlaceholder}
}

// LoanView is a loan with the read-side projections attached.
type LoanView struct {
	Loan        *Loan
	Book        BookSummary
	User        *UserSummary
	Overdue     bool
	DaysOverdue int
}

// NewLoanView computes the overdue projection for l at now.
func NewLoanView(l *Loan, book BookSummary, now time.Time) *LoanView {
	days, overdue := DaysOverdue(l, now)
	return &LoanView{Loan: l, Book: book, Overdue: overdue, DaysOverdue: days}
}

// Extension is the outcome of a successful extend.
type Extension struct {
	Loan            *Loan
	OriginalDueDate time.Time
}

// UserLoans is a user's loan history.
type UserLoans struct {
	User  UserSummary
	Loans []*LoanView
	Total int
}
