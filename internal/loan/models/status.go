package models

import (
	"strings"

	dErrors "smartlib/pkg/domain-errors"
)

// Status is the closed set of loan states. Canonical rendering is uppercase.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusReturned Status = "RETURNED"
)

// ParseStatus accepts any casing of a known status.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusReturned:
		return StatusReturned, nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, "status must be one of ACTIVE, RETURNED").
			WithReason(ReasonInvalidStatus)
	}
}

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusReturned
}

// CanTransitionTo reports whether next is reachable from s. Status only moves forward.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusActive && next == StatusReturned
}
