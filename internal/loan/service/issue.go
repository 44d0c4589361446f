package service

import (
	"context"
	"errors"
	"time"

	"smartlib/internal/loan/models"
	id "smartlib/pkg/domain"
	dErrors "smartlib/pkg/domain-errors"
	"smartlib/pkg/platform/sentinel"
	"smartlib/pkg/requestcontext"
)

// IssueCommand is the raw input of an issuance. Fields are parsed by Issue.
type IssueCommand struct {
	UserID  string
	BookID  string
	DueDate string
}

type issueInput struct {
	userID  id.UserID
	bookID  id.BookID
	dueDate time.Time
}

func (c IssueCommand) parse(now time.Time) (issueInput, error) {
	userID, err := id.ParseUserID(c.UserID)
	if err != nil {
		return issueInput{}, invalidRequest(err)
	}
	bookID, err := id.ParseBookID(c.BookID)
	if err != nil {
		return issueInput{}, invalidRequest(err)
	}
	due, err := models.ParseDueDate(c.DueDate)
	if err != nil {
		return issueInput{}, invalidRequest(err)
	}
	if !due.After(now) {
		return issueInput{}, dErrors.New(dErrors.CodeValidation, "due_date must be in the future").
			WithReason(models.ReasonInvalidRequest)
	}
	return issueInput{userID: userID, bookID: bookID, dueDate: due}, nil
}

// Issue lends one copy of a book to a user.
//
// Steps: validate, look up the user, read the book, reserve one copy, record
// the loan. A reservation that cannot be recorded is released again when
// compensation is enabled; whether or not that succeeds the caller sees a
// persistence failure.
func (s *Service) Issue(ctx context.Context, cmd IssueCommand) (loan *models.Loan, err error) {
	ctx, span := s.begin(ctx, sagaIssue)
	defer span.End()
	defer func() {
		var loanID id.LoanID
		if loan != nil {
			loanID = loan.ID
		}
		s.finish(ctx, span, sagaIssue, loanID, err)
	}()

	now := requestcontext.Now(ctx)
	in, err := cmd.parse(now)
	if err != nil {
		return nil, err
	}

	err = s.step(ctx, sagaIssue, "identity", func(ctx context.Context) error {
		return s.requireUser(ctx, in.userID)
	})
	if err != nil {
		return nil, err
	}

	err = s.step(ctx, sagaIssue, "inventory_read", func(ctx context.Context) error {
		book, err := s.inventory.GetBook(ctx, in.bookID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return models.ErrBookNotFound()
			}
			return models.ErrInventoryUnavailable(err)
		}
		s.cacheBook(ctx, book.Summary())
		if book.AvailableCopies <= 0 {
			return models.ErrNoCopiesAvailable()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.step(ctx, sagaIssue, "reserve", func(ctx context.Context) error {
		_, err := s.inventory.AdjustAvailability(ctx, in.bookID, models.OperationDecrement)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, sentinel.ErrRejected):
			return models.ErrNoCopiesAvailable()
		case errors.Is(err, sentinel.ErrNotFound):
			return models.ErrBookNotFound()
		default:
			// A lost reply leaves the outcome unknown; the decrement may have applied.
			s.logger.WarnContext(ctx, "reservation outcome unknown",
				"book_id", in.bookID.String(),
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			return models.ErrInventoryUnavailable(err)
		}
	})
	if err != nil {
		return nil, err
	}

	err = s.step(ctx, sagaIssue, "ledger_create", func(ctx context.Context) error {
		created, err := s.ledger.Create(ctx, in.userID, in.bookID, in.dueDate, now)
		if err != nil {
			return err
		}
		loan = created
		return nil
	})
	if err != nil {
		s.releaseReservation(ctx, in.bookID, err)
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			return nil, err
		}
		return nil, models.ErrPersistence(err, "failed to record loan")
	}

	s.publish(ctx, models.NewLoanEvent(models.EventLoanIssued, loan, now, requestcontext.RequestID(ctx)))
	return loan, nil
}

// requireUser maps an identity lookup onto the saga's error taxonomy.
func (s *Service) requireUser(ctx context.Context, userID id.UserID) error {
	_, err := s.lookupUser(ctx, userID)
	return err
}

func (s *Service) lookupUser(ctx context.Context, userID id.UserID) (*models.UserSummary, error) {
	user, err := s.identity.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrUserNotFound()
		}
		return nil, models.ErrIdentityUnavailable(err)
	}
	return user, nil
}

// releaseReservation is the compensating increment after a failed ledger write.
func (s *Service) releaseReservation(ctx context.Context, bookID id.BookID, cause error) {
	attrs := []any{
		"book_id", bookID.String(),
		"request_id", requestcontext.RequestID(ctx),
		"cause", cause,
	}
	if !s.compensate {
		s.metrics.IncrementCompensation(sagaIssue, "skipped")
		s.metrics.IncrementInconsistentWindow(sagaIssue)
		s.logger.ErrorContext(ctx, "copy reserved without a loan; compensation disabled", attrs...)
		return
	}
	err := s.step(ctx, sagaIssue, "compensate", func(ctx context.Context) error {
		_, err := s.inventory.AdjustAvailability(ctx, bookID, models.OperationIncrement)
		return err
	})
	if err != nil {
		s.metrics.IncrementCompensation(sagaIssue, outcomeFailure)
		s.metrics.IncrementInconsistentWindow(sagaIssue)
		s.logger.ErrorContext(ctx, "compensating increment failed; copy reserved without a loan",
			append(attrs, "error", err)...)
		return
	}
	s.metrics.IncrementCompensation(sagaIssue, outcomeSuccess)
	s.logger.WarnContext(ctx, "released reservation after ledger failure", attrs...)
}
