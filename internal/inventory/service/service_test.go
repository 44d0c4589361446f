package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"smartlib/internal/inventory/models"
	"smartlib/internal/inventory/store"
	id "smartlib/pkg/domain"
	dErrors "smartlib/pkg/domain-errors"
	"smartlib/pkg/requestcontext"
)

// =============================================================================
// Inventory Service Test Suite
// =============================================================================
// Uses the in-memory store; the bound checks live in the store write and are
// exercised through the service's error mapping.

type InventoryServiceSuite struct {
	suite.Suite
	service *Service
	ctx     context.Context
}

func TestInventoryServiceSuite(t *testing.T) {
	suite.Run(t, new(InventoryServiceSuite))
}

func (s *InventoryServiceSuite) SetupTest() {
	svc, err := New(store.NewInMemory(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.service = svc
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func (s *InventoryServiceSuite) TestNew() {
	_, err := New(nil)
	s.Require().Error(err)
	s.Contains(err.Error(), "book store is required")
}

func (s *InventoryServiceSuite) TestCreateBook() {
	s.Run("generates an id when none is given", func() {
		book, err := s.service.CreateBook(s.ctx, CreateBookCommand{Title: "Dune", Author: "Frank Herbert", Copies: 2})
		s.Require().NoError(err)
		s.False(book.ID.IsNil())
		s.Equal(2, book.AvailableCopies)
	})

	s.Run("stable id and duplicate conflict", func() {
		bookID := id.NewBookID().String()
		_, err := s.service.CreateBook(s.ctx, CreateBookCommand{ID: bookID, Title: "Emma", Copies: 1})
		s.Require().NoError(err)

		_, err = s.service.CreateBook(s.ctx, CreateBookCommand{ID: bookID, Title: "Emma", Copies: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("malformed id", func() {
		_, err := s.service.CreateBook(s.ctx, CreateBookCommand{ID: "x", Title: "Emma", Copies: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *InventoryServiceSuite) TestAdjustAvailability() {
	book, err := s.service.CreateBook(s.ctx, CreateBookCommand{Title: "Dune", Copies: 1})
	s.Require().NoError(err)

	s.Run("increment at total is rejected", func() {
		_, err := s.service.AdjustAvailability(s.ctx, book.ID.String(), "increment")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.True(dErrors.HasReason(err, models.ReasonAvailabilityAtMax))
	})

	s.Run("decrement then decrement again", func() {
		got, err := s.service.AdjustAvailability(s.ctx, book.ID.String(), "decrement")
		s.Require().NoError(err)
		s.Equal(0, got.AvailableCopies)

		_, err = s.service.AdjustAvailability(s.ctx, book.ID.String(), "decrement")
		s.True(dErrors.HasReason(err, models.ReasonNoCopiesAvailable))
	})

	s.Run("unknown operation", func() {
		_, err := s.service.AdjustAvailability(s.ctx, book.ID.String(), "reset")
		s.True(dErrors.HasReason(err, models.ReasonInvalidOperation))
	})

	s.Run("unknown book", func() {
		_, err := s.service.AdjustAvailability(s.ctx, id.NewBookID().String(), "increment")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *InventoryServiceSuite) TestGetBook() {
	_, err := s.service.GetBook(s.ctx, id.NewBookID().String())
	s.True(dErrors.HasReason(err, models.ReasonBookNotFound))

	_, err = s.service.GetBook(s.ctx, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
