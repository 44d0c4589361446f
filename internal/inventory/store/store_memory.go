// Package store persists books. Stores are pure I/O and report outcomes as
// sentinel errors; the bound check on availability is part of the write so
// concurrent adjustments cannot overshoot.
package store

import (
	"context"
	"sync"
	"time"

	"smartlib/internal/inventory/models"
	id "smartlib/pkg/domain"
	"smartlib/pkg/platform/sentinel"
)

// InMemoryStore guards every book with one mutex.
type InMemoryStore struct {
	mu    sync.Mutex
	books map[id.BookID]*models.Book
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{books: make(map[id.BookID]*models.Book)}
}

func (s *InMemoryStore) Create(_ context.Context, book *models.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.books[book.ID]; exists {
		return sentinel.ErrConflict
	}
	s.books[book.ID] = book.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, bookID id.BookID) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return book.Clone(), nil
}

// Adjust applies op if it keeps availability within bounds.
func (s *InMemoryStore) Adjust(_ context.Context, bookID id.BookID, op models.Operation, now time.Time) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := book.CanApply(op); err != nil {
		return nil, sentinel.ErrInvalidState
	}
	book.Apply(op, now)
	return book.Clone(), nil
}
