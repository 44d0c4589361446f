package store

import (
	"context"
	"sync"
	"time"

	"smartlib/internal/loan/models"
	id "smartlib/pkg/domain"
	"smartlib/pkg/platform/sentinel"
)

// InMemoryStore keeps loans in a map guarded by a single RWMutex. Conditional
// updates run under the write lock, which gives them the same all-or-nothing
// behaviour as the SQL store's guarded UPDATE.
type InMemoryStore struct {
	mu    sync.RWMutex
	loans map[id.LoanID]*models.Loan
	order []id.LoanID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{loans: make(map[id.LoanID]*models.Loan)}
}

func (s *InMemoryStore) Create(_ context.Context, loan *models.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.loans[loan.ID]; exists {
		return sentinel.ErrConflict
	}
	s.loans[loan.ID] = loan.Clone()
	s.order = append(s.order, loan.ID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, loanID id.LoanID) (*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loan, ok := s.loans[loanID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return loan.Clone(), nil
}

// List returns matching loans in insertion order.
func (s *InMemoryStore) List(_ context.Context, filter models.Filter) ([]*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Loan, 0)
	for _, loanID := range s.order {
		if loan := s.loans[loanID]; filter.Matches(loan) {
			out = append(out, loan.Clone())
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkReturned(_ context.Context, loanID id.LoanID, returnedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, ok := s.loans[loanID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !loan.IsActive() {
		return sentinel.ErrInvalidState
	}
	loan.ApplyReturn(returnedAt)
	return nil
}

func (s *InMemoryStore) Extend(_ context.Context, loanID id.LoanID, newDue time.Time, expectedCount int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, ok := s.loans[loanID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !loan.IsActive() || loan.ExtensionsCount != expectedCount {
		return sentinel.ErrConflict
	}
	loan.DueDate = newDue
	loan.ExtensionsCount++
	loan.UpdatedAt = now
	return nil
}
