// Package domain holds typed identifiers shared across the library services.
//
// Each identifier wraps a UUID so a user ID can never be passed where a book
// or loan ID is expected. Parse functions are the trust boundary: they reject
// empty, malformed and nil UUIDs with CodeInvalidInput.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "smartlib/pkg/domain-errors"
)

type (
	UserID uuid.UUID
	BookID uuid.UUID
	LoanID uuid.UUID
)

func NewUserID() UserID { return UserID(uuid.New()) }
func NewBookID() BookID { return BookID(uuid.New()) }
func NewLoanID() LoanID { return LoanID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

func ParseBookID(s string) (BookID, error) {
	u, err := parseUUID(s, "book_id")
	return BookID(u), err
}

func ParseLoanID(s string) (LoanID, error) {
	u, err := parseUUID(s, "loan_id")
	return LoanID(u), err
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id BookID) String() string { return uuid.UUID(id).String() }
func (id LoanID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BookID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id LoanID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id BookID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id LoanID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *BookID) UnmarshalText(b []byte) error {
	parsed, err := ParseBookID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *LoanID) UnmarshalText(b []byte) error {
	parsed, err := ParseLoanID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, field+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be the nil UUID")
	}
	return u, nil
}
