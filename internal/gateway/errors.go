package gateway

import (
	"errors"
	"fmt"
)

// Category classifies a failed collaborator call.
type Category string

const (
	// CategoryNotFound means the collaborator answered 404.
	CategoryNotFound Category = "not_found"
	// CategoryRejected means the collaborator answered with any other 4xx.
	CategoryRejected Category = "rejected"
	// CategoryUnavailable covers transport errors, timeouts and 5xx after retries.
	CategoryUnavailable Category = "unavailable"
)

// Error describes a failed call to a collaborator service.
type Error struct {
	Category   Category
	Service    string
	Operation  string
	StatusCode int
	Body       []byte
	Attempts   int
	Underlying error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Service, e.Operation, e.Category)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// CategoryOf returns the category of a gateway error, or "" for other errors.
func CategoryOf(err error) Category {
	var gErr *Error
	if errors.As(err, &gErr) {
		return gErr.Category
	}
	return ""
}

func IsNotFound(err error) bool    { return CategoryOf(err) == CategoryNotFound }
func IsRejected(err error) bool    { return CategoryOf(err) == CategoryRejected }
func IsUnavailable(err error) bool { return CategoryOf(err) == CategoryUnavailable }
