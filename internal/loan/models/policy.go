package models

import (
	"math"
	"time"

	dErrors "smartlib/pkg/domain-errors"
)

const day = 24 * time.Hour

// MaxExtensionDays caps a single extension. It also keeps days*24h far from
// the time.Duration overflow.
const MaxExtensionDays = 365

// IsOverdue reports whether an active loan is past its due date.
func IsOverdue(l *Loan, now time.Time) bool {
	return l.Status == StatusActive && l.DueDate.Before(now)
}

// DaysOverdue returns whole days past due, rounded down. ok is false when the
// loan is not overdue.
func DaysOverdue(l *Loan, now time.Time) (days int, ok bool) {
	if !IsOverdue(l, now) {
		return 0, false
	}
	return int(math.Floor(float64(now.Sub(l.DueDate)) / float64(day))), true
}

// ExtendedDueDate adds days of 24h each to due.
func ExtendedDueDate(due time.Time, days int) time.Time {
	return due.Add(time.Duration(days) * day)
}

// CheckExtension gates Loan.ApplyExtension. Order matters: state, then limit, then the
// new date, so an overdue loan is InvalidState whatever its extension count.
func CheckExtension(l *Loan, days int, now time.Time) error {
	if !l.IsActive() {
		return dErrors.New(dErrors.CodeInvalidState, "only active loans can be extended").
			WithReason(ReasonLoanNotActive)
	}
	if IsOverdue(l, now) {
		return dErrors.New(dErrors.CodeInvalidState, "overdue loans cannot be extended").
			WithReason(ReasonLoanOverdue)
	}
	if l.ExtensionsCount >= MaxExtensions {
		return dErrors.New(dErrors.CodeLimitExceeded, "loan has reached the maximum number of extensions").
			WithReason(ReasonExtensionLimit)
	}
	if days <= 0 {
		return dErrors.New(dErrors.CodeInvalidState, "extension_days must be a positive integer").
			WithReason(ReasonInvalidExtension)
	}
	if days > MaxExtensionDays {
		return dErrors.New(dErrors.CodeInvalidState, "extension_days must be at most 365").
			WithReason(ReasonInvalidExtension)
	}
	if !ExtendedDueDate(l.DueDate, days).After(now) {
		return dErrors.New(dErrors.CodeInvalidState, "extended due date must be in the future").
			WithReason(ReasonInvalidExtension)
	}
	return nil
}
