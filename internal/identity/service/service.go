// Package service implements the identity collaborator: user registration and lookup.
package service

import (
	"context"
	"errors"
	"log/slog"

	"smartlib/internal/identity/models"
	id "smartlib/pkg/domain"
	dErrors "smartlib/pkg/domain-errors"
	"smartlib/pkg/platform/sentinel"
	"smartlib/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
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
		return nil, errors.New("user store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateUserCommand registers a user. ID is optional.
type CreateUserCommand struct {
	ID    string
	Name  string
	Email string
}

func (s *Service) CreateUser(ctx context.Context, cmd CreateUserCommand) (*models.User, error) {
	userID := id.NewUserID()
	if cmd.ID != "" {
		parsed, err := id.ParseUserID(cmd.ID)
		if err != nil {
			return nil, err
		}
		userID = parsed
	}
	user, err := models.NewUser(userID, cmd.Name, cmd.Email, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "user already exists").
				WithReason(models.ReasonUserAlreadyExists)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	s.logger.InfoContext(ctx, "user created", "user_id", user.ID.String(), "request_id", requestcontext.RequestID(ctx))
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, rawUserID string) (*models.User, error) {
	userID, err := id.ParseUserID(rawUserID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrUserNotFound()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}
