// Package handler exposes the identity service over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"smartlib/internal/identity/models"
	"smartlib/internal/identity/service"
	"smartlib/internal/platform/metrics"
	"smartlib/internal/platform/middleware"
	dErrors "smartlib/pkg/domain-errors"
	"smartlib/pkg/platform/httputil"
)

type Service interface {
	CreateUser(ctx context.Context, cmd service.CreateUserCommand) (*models.User, error)
	GetUser(ctx context.Context, rawUserID string) (*models.User, error)
}

type CreateUserRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (r *CreateUserRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Email) == "" {
		return dErrors.New(dErrors.CodeValidation, "name and email are required").WithReason(models.ReasonInvalidUser)
	}
	return nil
}

type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID.String(), Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt.UTC()}
}

type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(svc Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{service: svc, logger: logger, metrics: m}
}

func (h *Handler) Register(r chi.Router) {
	users := chi.NewRouter()
	users.Use(middleware.Recovery(h.logger))
	users.Use(middleware.RequestID)
	users.Use(middleware.RequestTime)
	users.Use(middleware.Logger(h.logger))
	users.Use(middleware.Timeout(30 * time.Second))
	users.Use(middleware.ContentTypeJSON)
	users.Use(middleware.LatencyMiddleware(h.metrics))
	users.Post("/users", h.handleCreateUser)
	users.Get("/users/{id}", h.handleGetUser)

	r.Mount("/", users)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	user, err := h.service.CreateUser(ctx, service.CreateUserCommand{ID: req.ID, Name: req.Name, Email: req.Email})
	if err != nil {
		h.logger.WarnContext(ctx, "create user failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.service.GetUser(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}
