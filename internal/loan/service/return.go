package service

import (
	"context"
	"time"

	"smartlib/internal/loan/models"
	id "smartlib/pkg/domain"
	dErrors "smartlib/pkg/domain-errors"
	"smartlib/pkg/requestcontext"
)

// Return closes an active loan and releases its copy.
//
// The copy is released before the loan is marked returned. If the ledger write
// then fails, inventory and ledger disagree until an operator intervenes; that
// window is logged and counted, and no compensating decrement is attempted.
// The exception is a lost race against a concurrent return of the same loan:
// our release was then a second one and is taken back.
func (s *Service) Return(ctx context.Context, rawLoanID string) (view *models.LoanView, err error) {
	ctx, span := s.begin(ctx, sagaReturn)
	defer span.End()

	var loanID id.LoanID
	defer func() { s.finish(ctx, span, sagaReturn, loanID, err) }()

	loanID, err = id.ParseLoanID(rawLoanID)
	if err != nil {
		return nil, invalidRequest(err)
	}
	now := requestcontext.Now(ctx)

	returned, err := s.closeLoan(ctx, loanID, now)
	if err != nil {
		return nil, err
	}

	book := s.bookSummary(ctx, returned.BookID)
	s.publish(ctx, models.NewLoanEvent(models.EventLoanReturned, returned, now, requestcontext.RequestID(ctx)))
	return models.NewLoanView(returned, book, now), nil
}

// closeLoan runs the return steps under the loan's lock. Enrichment and the
// lifecycle event happen after the lock is released.
func (s *Service) closeLoan(ctx context.Context, loanID id.LoanID, now time.Time) (*models.Loan, error) {
	unlock := s.locks.lock(loanID)
	defer unlock()

	var loan *models.Loan
	err := s.step(ctx, sagaReturn, "ledger_read", func(ctx context.Context) error {
		found, err := s.ledger.FindByID(ctx, loanID)
		if err != nil {
			return err
		}
		if !found.IsActive() {
			return models.ErrAlreadyReturned()
		}
		loan = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.step(ctx, sagaReturn, "release", func(ctx context.Context) error {
		if _, err := s.inventory.AdjustAvailability(ctx, loan.BookID, models.OperationIncrement); err != nil {
			return models.ErrInventoryUnavailable(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var returned *models.Loan
	err = s.step(ctx, sagaReturn, "ledger_update", func(ctx context.Context) error {
		updated, err := s.ledger.MarkReturned(ctx, loanID, now)
		if err != nil {
			return err
		}
		returned = updated
		return nil
	})
	if err != nil {
		if dErrors.HasReason(err, models.ReasonAlreadyReturned) {
			s.undoDuplicateRelease(ctx, loan)
			return nil, err
		}
		s.metrics.IncrementInconsistentWindow(sagaReturn)
		s.logger.ErrorContext(ctx, "copy released but loan still active",
			"loan_id", loanID.String(),
			"book_id", loan.BookID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, err
	}
	return returned, nil
}

// undoDuplicateRelease takes back the copy released by a return that lost the
// race to mark the loan returned.
func (s *Service) undoDuplicateRelease(ctx context.Context, loan *models.Loan) {
	err := s.step(ctx, sagaReturn, "compensate", func(ctx context.Context) error {
		_, err := s.inventory.AdjustAvailability(ctx, loan.BookID, models.OperationDecrement)
		return err
	})
	attrs := []any{
		"loan_id", loan.ID.String(),
		"book_id", loan.BookID.String(),
		"request_id", requestcontext.RequestID(ctx),
	}
	if err != nil {
		s.metrics.IncrementCompensation(sagaReturn, outcomeFailure)
		s.metrics.IncrementInconsistentWindow(sagaReturn)
		s.logger.ErrorContext(ctx, "could not take back duplicate release", append(attrs, "error", err)...)
		return
	}
	s.metrics.IncrementCompensation(sagaReturn, outcomeSuccess)
	s.logger.WarnContext(ctx, "took back duplicate release after concurrent return", attrs...)
}
