package models

import (
	"time"

	id "smartlib/pkg/domain"
)

// EventType names a loan lifecycle event.
type EventType string

const (
	EventLoanIssued   EventType = "loan.issued"
	EventLoanReturned EventType = "loan.returned"
	EventLoanExtended EventType = "loan.extended"
	EventLoanOverdue  EventType = "loan.overdue"
)

// LoanEvent is published after a lifecycle change has been committed.
type LoanEvent struct {
	Type        EventType  `json:"type"`
	LoanID      id.LoanID  `json:"loan_id"`
	UserID      id.UserID  `json:"user_id"`
	BookID      id.BookID  `json:"book_id"`
	Status      Status     `json:"status"`
	DueDate     time.Time  `json:"due_date"`
	ReturnDate  *time.Time `json:"return_date,omitempty"`
	DaysOverdue int        `json:"days_overdue,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
	RequestID   string     `json:"request_id,omitempty"`
}

// NewLoanEvent snapshots l for publication.
func NewLoanEvent(t EventType, l *Loan, now time.Time, requestID string) LoanEvent {
	evt := LoanEvent{
		Type:       t,
		LoanID:     l.ID,
		UserID:     l.UserID,
		BookID:     l.BookID,
		Status:     l.Status,
		DueDate:    l.DueDate,
		OccurredAt: now,
		RequestID:  requestID,
	}
	if l.ReturnDate != nil {
		rd := *l.ReturnDate
		evt.ReturnDate = &rd
	}
	return evt
}
