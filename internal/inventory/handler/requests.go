package handler

import (
	"strings"
	"time"

	"smartlib/internal/inventory/models"
	dErrors "smartlib/pkg/domain-errors"
)

type CreateBookRequest struct {
	ID     string `json:"id,omitempty"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
	Copies *int   `json:"copies"`
}

func (r *CreateBookRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required").WithReason(models.ReasonInvalidBook)
	}
	if r.Copies == nil {
		return dErrors.New(dErrors.CodeValidation, "copies is required").WithReason(models.ReasonInvalidBook)
	}
	return nil
}

type AdjustAvailabilityRequest struct {
	Operation string `json:"operation"`
}

func (r *AdjustAvailabilityRequest) Validate() error {
	if strings.TrimSpace(r.Operation) == "" {
		return dErrors.New(dErrors.CodeValidation, "operation is required").WithReason(models.ReasonInvalidOperation)
	}
	return nil
}

type BookResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn,omitempty"`
	Copies          int       `json:"copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type AvailabilityResponse struct {
	ID              string    `json:"id"`
	AvailableCopies int       `json:"available_copies"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toBookResponse(b *models.Book) BookResponse {
	return BookResponse{
		ID:              b.ID.String(),
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		Copies:          b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		CreatedAt:       b.CreatedAt.UTC(),
		UpdatedAt:       b.UpdatedAt.UTC(),
	}
}
