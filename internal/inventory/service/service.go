// Package service implements the inventory collaborator: books and their
// single-unit availability adjustments.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"smartlib/internal/inventory/models"
	id "smartlib/pkg/domain"
	dErrors "smartlib/pkg/domain-errors"
	"smartlib/pkg/platform/sentinel"
	"smartlib/pkg/requestcontext"
)

// Store returns sentinel errors: ErrNotFound, ErrConflict, and ErrInvalidState
// when an adjustment would leave availability out of bounds.
type Store interface {
	Create(ctx context.Context, book *models.Book) error
	FindByID(ctx context.Context, bookID id.BookID) (*models.Book, error)
	Adjust(ctx context.Context, bookID id.BookID, op models.Operation, now time.Time) (*models.Book, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("book store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateBookCommand describes a new title. ID is optional and lets seed data
// use stable identifiers.
type CreateBookCommand struct {
	ID     string
	Title  string
	Author string
	ISBN   string
	Copies int
}

func (s *Service) CreateBook(ctx context.Context, cmd CreateBookCommand) (*models.Book, error) {
	bookID := id.NewBookID()
	if cmd.ID != "" {
		parsed, err := id.ParseBookID(cmd.ID)
		if err != nil {
			return nil, err
		}
		bookID = parsed
	}
	book, err := models.NewBook(bookID, cmd.Title, cmd.Author, cmd.ISBN, cmd.Copies, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, book); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "book already exists").
				WithReason(models.ReasonBookAlreadyExists)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create book").
			WithReason(models.ReasonPersistenceFailure)
	}
	s.logger.InfoContext(ctx, "book created",
		"book_id", book.ID.String(),
		"copies", book.TotalCopies,
		"request_id", requestcontext.RequestID(ctx),
	)
	return book, nil
}

func (s *Service) GetBook(ctx context.Context, rawBookID string) (*models.Book, error) {
	bookID, err := id.ParseBookID(rawBookID)
	if err != nil {
		return nil, err
	}
	book, err := s.store.FindByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrBookNotFound()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load book").
			WithReason(models.ReasonPersistenceFailure)
	}
	return book, nil
}

// AdjustAvailability applies one decrement or increment atomically.
func (s *Service) AdjustAvailability(ctx context.Context, rawBookID, rawOp string) (*models.Book, error) {
	bookID, err := id.ParseBookID(rawBookID)
	if err != nil {
		return nil, err
	}
	op, err := models.ParseOperation(rawOp)
	if err != nil {
		return nil, err
	}

	book, err := s.store.Adjust(ctx, bookID, op, requestcontext.Now(ctx))
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, models.ErrBookNotFound()
		case errors.Is(err, sentinel.ErrInvalidState) && op == models.OperationDecrement:
			return nil, models.ErrNoCopiesAvailable()
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, models.ErrAvailabilityAtTotal()
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to adjust availability").
				WithReason(models.ReasonPersistenceFailure)
		}
	}
	s.logger.InfoContext(ctx, "availability adjusted",
		"book_id", bookID.String(),
		"operation", string(op),
		"available_copies", book.AvailableCopies,
		"request_id", requestcontext.RequestID(ctx),
	)
	return book, nil
}
