package models

import (
	"strings"
	"time"

	dErrors "smartlib/pkg/domain-errors"
)

const dateOnly = "2006-01-02"

// ParseDueDate accepts an RFC3339 timestamp or a bare YYYY-MM-DD date (midnight UTC).
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "due_date is required").
			WithReason(ReasonInvalidRequest)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateOnly, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, dErrors.New(dErrors.CodeValidation, "due_date must be RFC3339 or YYYY-MM-DD").
		WithReason(ReasonInvalidRequest)
}
