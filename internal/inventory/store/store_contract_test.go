package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"smartlib/internal/inventory/models"
	id "smartlib/pkg/domain"
	"smartlib/pkg/platform/sentinel"
)

// bookStore is what every backend provides.
type bookStore interface {
	Create(ctx context.Context, book *models.Book) error
	FindByID(ctx context.Context, bookID id.BookID) (*models.Book, error)
	Adjust(ctx context.Context, bookID id.BookID, op models.Operation, now time.Time) (*models.Book, error)
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// storeContract is embedded by each backend suite.
type storeContract struct {
	suite.Suite
	store bookStore
}

func (s *storeContract) seed(copies int) *models.Book {
	book, err := models.NewBook(id.NewBookID(), "Dune", "Frank Herbert", "9780441013593", copies, now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), book))
	return book
}

// =============================================================================
// Create / Find
// =============================================================================

func (s *storeContract) TestCreateAndFind() {
	ctx := context.Background()
	book := s.seed(3)

	got, err := s.store.FindByID(ctx, book.ID)
	s.Require().NoError(err)
	s.Equal(book.ID, got.ID)
	s.Equal("Dune", got.Title)
	s.Equal(3, got.TotalCopies)
	s.Equal(3, got.AvailableCopies)
	s.True(got.CreatedAt.Equal(now))

	s.ErrorIs(s.store.Create(ctx, book), sentinel.ErrConflict)

	_, err = s.store.FindByID(ctx, id.NewBookID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// =============================================================================
// Adjust
// =============================================================================

func (s *storeContract) TestAdjustBounds() {
	ctx := context.Background()
	book := s.seed(1)

	_, err := s.store.Adjust(ctx, book.ID, models.OperationIncrement, now)
	s.ErrorIs(err, sentinel.ErrInvalidState, "cannot exceed total copies")

	later := now.Add(time.Minute)
	got, err := s.store.Adjust(ctx, book.ID, models.OperationDecrement, later)
	s.Require().NoError(err)
	s.Equal(0, got.AvailableCopies)
	s.True(got.UpdatedAt.Equal(later))

	_, err = s.store.Adjust(ctx, book.ID, models.OperationDecrement, later)
	s.ErrorIs(err, sentinel.ErrInvalidState, "cannot go below zero")

	got, err = s.store.Adjust(ctx, book.ID, models.OperationIncrement, later)
	s.Require().NoError(err)
	s.Equal(1, got.AvailableCopies)

	_, err = s.store.Adjust(ctx, id.NewBookID(), models.OperationIncrement, later)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *storeContract) TestConcurrentDecrementsNeverOvershoot() {
	ctx := context.Background()
	const copies, workers = 3, 20
	book := s.seed(copies)

	var (
		wg       sync.WaitGroup
		granted  atomic.Int32
		rejected atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Adjust(ctx, book.ID, models.OperationDecrement, now)
			switch {
			case err == nil:
				granted.Add(1)
			case err == sentinel.ErrInvalidState:
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(copies), granted.Load())
	s.Equal(int32(workers-copies), rejected.Load())
	got, err := s.store.FindByID(ctx, book.ID)
	s.Require().NoError(err)
	s.Equal(0, got.AvailableCopies)
}
