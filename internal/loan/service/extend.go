package service

import (
	"context"
	"time"

	"smartlib/internal/loan/models"
	id "smartlib/pkg/domain"
	"smartlib/pkg/requestcontext"
)

// Extend pushes an active loan's due date back by days. No collaborator is involved.
func (s *Service) Extend(ctx context.Context, rawLoanID string, days int) (ext *models.Extension, err error) {
	ctx, span := s.begin(ctx, sagaExtend)
	defer span.End()

	var loanID id.LoanID
	defer func() { s.finish(ctx, span, sagaExtend, loanID, err) }()

	loanID, err = id.ParseLoanID(rawLoanID)
	if err != nil {
		return nil, invalidRequest(err)
	}
	now := requestcontext.Now(ctx)

	ext, err = s.extendLoan(ctx, loanID, days, now)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, models.NewLoanEvent(models.EventLoanExtended, ext.Loan, now, requestcontext.RequestID(ctx)))
	return ext, nil
}

// extendLoan holds the loan's lock only for the ledger write.
func (s *Service) extendLoan(ctx context.Context, loanID id.LoanID, days int, now time.Time) (*models.Extension, error) {
	unlock := s.locks.lock(loanID)
	defer unlock()

	var ext *models.Extension
	err := s.step(ctx, sagaExtend, "ledger_update", func(ctx context.Context) error {
		extended, err := s.ledger.Extend(ctx, loanID, days, now)
		if err != nil {
			return err
		}
		ext = extended
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ext, nil
}
