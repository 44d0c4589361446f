package handler

import (
	"time"

	"smartlib/internal/loan/models"
)

// LoanResponse is the wire form of a loan. Timestamps are RFC3339 in UTC.
type LoanResponse struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	BookID          string     `json:"book_id"`
	IssueDate       time.Time  `json:"issue_date"`
	DueDate         time.Time  `json:"due_date"`
	ReturnDate      *time.Time `json:"return_date"`
	Status          string     `json:"status"`
	ExtensionsCount int        `json:"extensions_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type BookSummaryResponse struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

type UserSummaryResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LoanDetailResponse is a loan with its read-side projections.
type LoanDetailResponse struct {
	LoanResponse
	Book        BookSummaryResponse  `json:"book"`
	User        *UserSummaryResponse `json:"user,omitempty"`
	Overdue     bool                 `json:"overdue"`
	DaysOverdue *int                 `json:"days_overdue,omitempty"`
}

type LoanListResponse struct {
	Loans []LoanDetailResponse `json:"loans"`
	Total int                  `json:"total"`
}

type UserLoansResponse struct {
	User  UserSummaryResponse  `json:"user"`
	Loans []LoanDetailResponse `json:"loans"`
	Total int                  `json:"total"`
}

type ExtendLoanResponse struct {
	LoanResponse
	OriginalDueDate time.Time `json:"original_due_date"`
	ExtendedDueDate time.Time `json:"extended_due_date"`
}

func toLoanResponse(l *models.Loan) LoanResponse {
	resp := LoanResponse{
		ID:              l.ID.String(),
		UserID:          l.UserID.String(),
		BookID:          l.BookID.String(),
		IssueDate:       l.IssueDate.UTC(),
		DueDate:         l.DueDate.UTC(),
		Status:          l.Status.String(),
		ExtensionsCount: l.ExtensionsCount,
		CreatedAt:       l.CreatedAt.UTC(),
		UpdatedAt:       l.UpdatedAt.UTC(),
	}
	if l.ReturnDate != nil {
		rd := l.ReturnDate.UTC()
		resp.ReturnDate = &rd
	}
	return resp
}

func toUserSummary(u models.UserSummary) UserSummaryResponse {
	return UserSummaryResponse{ID: u.ID.String(), Name: u.Name, Email: u.Email}
}

func toLoanDetail(v *models.LoanView) LoanDetailResponse {
	resp := LoanDetailResponse{
		LoanResponse: toLoanResponse(v.Loan),
		Book: BookSummaryResponse{
			ID:     v.Book.ID.String(),
			Title:  v.Book.Title,
			Author: v.Book.Author,
		},
		Overdue: v.Overdue,
	}
	if v.User != nil {
		user := toUserSummary(*v.User)
		resp.User = &user
	}
	if v.Overdue {
		days := v.DaysOverdue
		resp.DaysOverdue = &days
	}
	return resp
}

func toLoanDetails(views []*models.LoanView) []LoanDetailResponse {
	out := make([]LoanDetailResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toLoanDetail(v))
	}
	return out
}
