// Package models holds the identity service's user record.
package models

import (
	"net/mail"
	"strings"
	"time"

	id "smartlib/pkg/domain"
	dErrors "smartlib/pkg/domain-errors"
)

const (
	ReasonUserNotFound      = "user_not_found"
	ReasonInvalidUser       = "invalid_user"
	ReasonUserAlreadyExists = "user_already_exists"
)

type User struct {
	ID        id.UserID
	Name      string
	Email     string
	CreatedAt time.Time
}

// NewUser validates name and email. Email is stored lowercased.
func NewUser(userID id.UserID, name, email string, now time.Time) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "name is required").WithReason(ReasonInvalidUser)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "email is invalid").WithReason(ReasonInvalidUser)
	}
	return &User{ID: userID, Name: name, Email: email, CreatedAt: now}, nil
}

func ErrUserNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "user not found").WithReason(ReasonUserNotFound)
}
