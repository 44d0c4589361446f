package handler

import (
	"strings"

	"smartlib/internal/loan/models"
	dErrors "smartlib/pkg/domain-errors"
)

type IssueLoanRequest struct {
	UserID  string `json:"user_id"`
	BookID  string `json:"book_id"`
	DueDate string `json:"due_date"`
}

func (r *IssueLoanRequest) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.BookID = strings.TrimSpace(r.BookID)
	r.DueDate = strings.TrimSpace(r.DueDate)
	if r.UserID == "" || r.BookID == "" || r.DueDate == "" {
		return invalidRequest("user_id, book_id and due_date are required")
	}
	return nil
}

type ReturnLoanRequest struct {
	LoanID string `json:"loan_id"`
}

func (r *ReturnLoanRequest) Validate() error {
	r.LoanID = strings.TrimSpace(r.LoanID)
	if r.LoanID == "" {
		return invalidRequest("loan_id is required")
	}
	return nil
}

type ExtendLoanRequest struct {
	ExtensionDays *int `json:"extension_days"`
}

func (r *ExtendLoanRequest) Validate() error {
	if r.ExtensionDays == nil {
		return invalidRequest("extension_days is required")
	}
	return nil
}

func invalidRequest(msg string) error {
	return dErrors.New(dErrors.CodeBadRequest, msg).WithReason(models.ReasonInvalidRequest)
}
