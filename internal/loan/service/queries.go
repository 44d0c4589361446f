package service

import (
	"context"
	"strings"

	"smartlib/internal/loan/models"
	id "smartlib/pkg/domain"
	"smartlib/pkg/requestcontext"
)

// Get returns one loan with its book summary and overdue flag.
func (s *Service) Get(ctx context.Context, rawLoanID string) (*models.LoanView, error) {
	loanID, err := id.ParseLoanID(rawLoanID)
	if err != nil {
		return nil, invalidRequest(err)
	}
	loan, err := s.ledger.FindByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	return models.NewLoanView(loan, s.bookSummary(ctx, loan.BookID), now), nil
}

// List returns all loans, or those in rawStatus when it is non-empty.
func (s *Service) List(ctx context.Context, rawStatus string) ([]*models.LoanView, error) {
	var (
		loans []*models.Loan
		err   error
	)
	if strings.TrimSpace(rawStatus) == "" {
		loans, err = s.ledger.ListAll(ctx)
	} else {
		status, parseErr := models.ParseStatus(rawStatus)
		if parseErr != nil {
			return nil, parseErr
		}
		loans, err = s.ledger.ListByStatus(ctx, status)
	}
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, loans, requestcontext.Now(ctx), false), nil
}

// ListByUser returns a user's loan history. The user must exist in the identity service.
func (s *Service) ListByUser(ctx context.Context, rawUserID string) (*models.UserLoans, error) {
	userID, err := id.ParseUserID(rawUserID)
	if err != nil {
		return nil, invalidRequest(err)
	}
	user, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	loans, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := s.enrich(ctx, loans, requestcontext.Now(ctx), false)
	return &models.UserLoans{User: *user, Loans: views, Total: len(views)}, nil
}

// ListOverdue returns active loans past due, with user and book summaries.
func (s *Service) ListOverdue(ctx context.Context) ([]*models.LoanView, error) {
	now := requestcontext.Now(ctx)
	loans, err := s.ledger.ListOverdue(ctx, now)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, loans, now, true), nil
}

// SweepOverdue publishes a loan.overdue event for every overdue loan and
// returns how many there were.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	loans, err := s.ledger.ListOverdue(ctx, now)
	if err != nil {
		return 0, err
	}
	s.metrics.SetOverdueLoans(len(loans))
	for _, loan := range loans {
		evt := models.NewLoanEvent(models.EventLoanOverdue, loan, now, requestcontext.RequestID(ctx))
		evt.DaysOverdue, _ = models.DaysOverdue(loan, now)
		s.publish(ctx, evt)
	}
	s.logger.InfoContext(ctx, "overdue sweep finished", "overdue", len(loans))
	return len(loans), nil
}
