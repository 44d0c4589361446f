// Package adapters implements the loan service's collaborator ports on top of
// the gateway client.
package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"smartlib/internal/gateway"
	"smartlib/internal/loan/models"
	id "smartlib/pkg/domain"
	"smartlib/pkg/platform/sentinel"
)

// InventoryClient talks to the service that owns books and their availability.
type InventoryClient struct {
	gw *gateway.Client
}

func NewInventoryClient(gw *gateway.Client) *InventoryClient {
	return &InventoryClient{gw: gw}
}

type bookPayload struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	Author               string `json:"author"`
	Copies               *int   `json:"copies"`
	AvailableCopies      *int   `json:"available_copies"`
	AvailableCopiesCamel *int   `json:"availableCopies"`
}

type availabilityRequest struct {
	Operation models.AvailabilityOperation `json:"operation"`
}

type availabilityPayload struct {
	ID              string    `json:"id"`
	AvailableCopies int       `json:"available_copies"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// GetBook reads a book and its current availability. Retried on transient failure.
func (c *InventoryClient) GetBook(ctx context.Context, bookID id.BookID) (*models.Book, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Operation:  "get_book",
		Method:     http.MethodGet,
		Path:       "/books/" + url.PathEscape(bookID.String()),
		Idempotent: true,
	})
	if err != nil {
		return nil, translate("get book", err)
	}

	var payload bookPayload
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, fmt.Errorf("get book: %w: %w", sentinel.ErrUnavailable, err)
	}
	book := &models.Book{
		ID:     bookID,
		Title:  payload.Title,
		Author: payload.Author,
	}
	if payload.Copies != nil {
		book.TotalCopies = *payload.Copies
	}
	switch {
	case payload.AvailableCopies != nil:
		book.AvailableCopies = *payload.AvailableCopies
	case payload.AvailableCopiesCamel != nil:
		book.AvailableCopies = *payload.AvailableCopiesCamel
	default:
		book.AvailableCopies = book.TotalCopies
	}
	return book, nil
}

// AdjustAvailability applies a single increment or decrement. It is sent exactly
// once: replaying an operation-tagged adjust after a lost reply would apply it twice.
func (c *InventoryClient) AdjustAvailability(ctx context.Context, bookID id.BookID, op models.AvailabilityOperation) (*models.Availability, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Operation: "adjust_availability",
		Method:    http.MethodPatch,
		Path:      "/books/" + url.PathEscape(bookID.String()) + "/availability",
		Body:      availabilityRequest{Operation: op},
	})
	if err != nil {
		return nil, translate("adjust availability", err)
	}

	var payload availabilityPayload
	if err := resp.DecodeJSON(&payload); err != nil {
		// The adjust was applied; only the reply is unreadable.
		return &models.Availability{BookID: bookID, AvailableCopies: -1}, nil
	}
	return &models.Availability{
		BookID:          bookID,
		AvailableCopies: payload.AvailableCopies,
		UpdatedAt:       payload.UpdatedAt,
	}, nil
}
