package models

import dErrors "smartlib/pkg/domain-errors"

// Machine-readable reasons attached to loan errors.
const (
	ReasonInvalidRequest       = "invalid_request"
	ReasonInvalidStatus        = "invalid_status"
	ReasonUserNotFound         = "user_not_found"
	ReasonBookNotFound         = "book_not_found"
	ReasonLoanNotFound         = "loan_not_found"
	ReasonNoCopiesAvailable    = "no_copies_available"
	ReasonAlreadyReturned      = "already_returned"
	ReasonLoanNotActive        = "loan_not_active"
	ReasonLoanOverdue          = "loan_overdue"
	ReasonExtensionLimit       = "extension_limit_exceeded"
	ReasonInvalidExtension     = "invalid_extension"
	ReasonIdentityUnavailable  = "identity_unavailable"
	ReasonInventoryUnavailable = "inventory_unavailable"
	ReasonPersistenceFailure   = "persistence_failure"
)

func ErrUserNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "user not found").WithReason(ReasonUserNotFound)
}

func ErrBookNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "book not found").WithReason(ReasonBookNotFound)
}

func ErrLoanNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "loan not found").WithReason(ReasonLoanNotFound)
}

func ErrNoCopiesAvailable() error {
	return dErrors.New(dErrors.CodeInvalidState, "no copies available").WithReason(ReasonNoCopiesAvailable)
}

func ErrAlreadyReturned() error {
	return dErrors.New(dErrors.CodeInvalidState, "loan already returned").WithReason(ReasonAlreadyReturned)
}

func ErrIdentityUnavailable(cause error) error {
	return dErrors.Wrap(cause, dErrors.CodeDependencyUnavailable, "identity service unavailable").
		WithReason(ReasonIdentityUnavailable)
}

func ErrInventoryUnavailable(cause error) error {
	return dErrors.Wrap(cause, dErrors.CodeDependencyUnavailable, "inventory service unavailable").
		WithReason(ReasonInventoryUnavailable)
}

func ErrPersistence(cause error, msg string) error {
	return dErrors.Wrap(cause, dErrors.CodeInternal, msg).WithReason(ReasonPersistenceFailure)
}
