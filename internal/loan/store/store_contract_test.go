package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"smartlib/internal/loan/models"
	id "smartlib/pkg/domain"
	"smartlib/pkg/platform/sentinel"
)

type loanStore interface {
	Create(ctx context.Context, loan *models.Loan) error
	FindByID(ctx context.Context, loanID id.LoanID) (*models.Loan, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Loan, error)
	MarkReturned(ctx context.Context, loanID id.LoanID, returnedAt time.Time) error
	Extend(ctx context.Context, loanID id.LoanID, newDue time.Time, expectedCount int, now time.Time) error
}

var (
	_ loanStore = (*InMemoryStore)(nil)
	_ loanStore = (*SQLStore)(nil)
)

var baseTime = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// storeContract is embedded by every backend suite so all backends are held
// to the same behaviour.
type storeContract struct {
	suite.Suite
	store loanStore
}

func (s *storeContract) newLoan(userID id.UserID) *models.Loan {
	loan, err := models.NewLoan(id.NewLoanID(), userID, id.NewBookID(), baseTime.Add(14*24*time.Hour), baseTime)
	s.Require().NoError(err)
	return loan
}

// =============================================================================
// Create / read
// =============================================================================

func (s *storeContract) TestCreateAndFind() {
	ctx := context.Background()
	loan := s.newLoan(id.NewUserID())

	s.Require().NoError(s.store.Create(ctx, loan))

	got, err := s.store.FindByID(ctx, loan.ID)
	s.Require().NoError(err)
	s.Equal(loan.ID, got.ID)
	s.Equal(loan.UserID, got.UserID)
	s.Equal(loan.BookID, got.BookID)
	s.True(loan.DueDate.Equal(got.DueDate))
	s.True(loan.IssueDate.Equal(got.IssueDate))
	s.Equal(models.StatusActive, got.Status)
	s.Nil(got.ReturnDate)
	s.Zero(got.ExtensionsCount)
}

func (s *storeContract) TestCreateDuplicateIsConflict() {
	ctx := context.Background()
	loan := s.newLoan(id.NewUserID())
	s.Require().NoError(s.store.Create(ctx, loan))

	err := s.store.Create(ctx, loan)

	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *storeContract) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), id.NewLoanID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *storeContract) TestListFilters() {
	ctx := context.Background()
	alice, bob := id.NewUserID(), id.NewUserID()
	a1, a2, b1 := s.newLoan(alice), s.newLoan(alice), s.newLoan(bob)
	for _, l := range []*models.Loan{a1, a2, b1} {
		s.Require().NoError(s.store.Create(ctx, l))
	}
	s.Require().NoError(s.store.MarkReturned(ctx, a2.ID, baseTime.Add(time.Hour)))

	all, err := s.store.List(ctx, models.Filter{})
	s.Require().NoError(err)
	s.Len(all, 3)

	byUser, err := s.store.List(ctx, models.Filter{UserID: &alice})
	s.Require().NoError(err)
	s.Len(byUser, 2)

	active := models.StatusActive
	activeLoans, err := s.store.List(ctx, models.Filter{Status: &active})
	s.Require().NoError(err)
	s.Len(activeLoans, 2)

	returned := models.StatusReturned
	returnedForAlice, err := s.store.List(ctx, models.Filter{Status: &returned, UserID: &alice})
	s.Require().NoError(err)
	s.Require().Len(returnedForAlice, 1)
	s.Equal(a2.ID, returnedForAlice[0].ID)
}

// =============================================================================
// Conditional updates
// =============================================================================

func (s *storeContract) TestMarkReturned() {
	ctx := context.Background()
	loan := s.newLoan(id.NewUserID())
	s.Require().NoError(s.store.Create(ctx, loan))
	returnedAt := baseTime.Add(2 * time.Hour)

	s.Require().NoError(s.store.MarkReturned(ctx, loan.ID, returnedAt))

	got, err := s.store.FindByID(ctx, loan.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusReturned, got.Status)
	s.Require().NotNil(got.ReturnDate)
	s.True(returnedAt.Equal(*got.ReturnDate))

	s.Run("second return is invalid state", func() {
		err := s.store.MarkReturned(ctx, loan.ID, returnedAt.Add(time.Hour))
		s.ErrorIs(err, sentinel.ErrInvalidState)

		again, err := s.store.FindByID(ctx, loan.ID)
		s.Require().NoError(err)
		s.True(returnedAt.Equal(*again.ReturnDate), "return date is set once")
	})

	s.Run("missing loan is not found", func() {
		err := s.store.MarkReturned(ctx, id.NewLoanID(), returnedAt)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *storeContract) TestConcurrentReturnsApplyOnce() {
	ctx := context.Background()
	loan := s.newLoan(id.NewUserID())
	s.Require().NoError(s.store.Create(ctx, loan))

	const workers = 8
	var applied, refused atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := s.store.MarkReturned(ctx, loan.ID, baseTime.Add(time.Hour)); err {
			case nil:
				applied.Add(1)
			case sentinel.ErrInvalidState:
				refused.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), applied.Load())
	s.Equal(int32(workers-1), refused.Load())
}

func (s *storeContract) TestExtendGuardedByCount() {
	ctx := context.Background()
	loan := s.newLoan(id.NewUserID())
	s.Require().NoError(s.store.Create(ctx, loan))
	newDue := loan.DueDate.Add(5 * 24 * time.Hour)

	s.Require().NoError(s.store.Extend(ctx, loan.ID, newDue, 0, baseTime))

	got, err := s.store.FindByID(ctx, loan.ID)
	s.Require().NoError(err)
	s.Equal(1, got.ExtensionsCount)
	s.True(newDue.Equal(got.DueDate))

	s.Run("stale count is a conflict", func() {
		err := s.store.Extend(ctx, loan.ID, newDue.Add(24*time.Hour), 0, baseTime)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("returned loan is a conflict", func() {
		s.Require().NoError(s.store.MarkReturned(ctx, loan.ID, baseTime))
		err := s.store.Extend(ctx, loan.ID, newDue.Add(24*time.Hour), 1, baseTime)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("missing loan is not found", func() {
		err := s.store.Extend(ctx, id.NewLoanID(), newDue, 0, baseTime)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
