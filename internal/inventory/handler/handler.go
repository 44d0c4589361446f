// Package handler exposes the inventory service over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"smartlib/internal/inventory/models"
	"smartlib/internal/inventory/service"
	"smartlib/internal/platform/metrics"
	"smartlib/internal/platform/middleware"
	"smartlib/pkg/platform/httputil"
)

const handlerTimeout = 30 * time.Second

type Service interface {
	CreateBook(ctx context.Context, cmd service.CreateBookCommand) (*models.Book, error)
	GetBook(ctx context.Context, rawBookID string) (*models.Book, error)
	AdjustAvailability(ctx context.Context, rawBookID, rawOp string) (*models.Book, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(svc Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{service: svc, logger: logger, metrics: m}
}

// Register mounts the book routes with the standard middleware chain.
func (h *Handler) Register(r chi.Router) {
	books := chi.NewRouter()
	books.Use(middleware.Recovery(h.logger))
	books.Use(middleware.RequestID)
	books.Use(middleware.RequestTime)
	books.Use(middleware.Logger(h.logger))
	books.Use(middleware.Timeout(handlerTimeout))
	books.Use(middleware.ContentTypeJSON)
	books.Use(middleware.LatencyMiddleware(h.metrics))
	books.Post("/books", h.handleCreateBook)
	books.Get("/books/{id}", h.handleGetBook)
	books.Patch("/books/{id}/availability", h.handleAdjustAvailability)

	r.Mount("/", books)
}

func (h *Handler) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateBookRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	book, err := h.service.CreateBook(ctx, service.CreateBookCommand{
		ID:     req.ID,
		Title:  req.Title,
		Author: req.Author,
		ISBN:   req.ISBN,
		Copies: *req.Copies,
	})
	if err != nil {
		h.writeError(ctx, w, "create book", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toBookResponse(book))
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	book, err := h.service.GetBook(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, "get book", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBookResponse(book))
}

func (h *Handler) handleAdjustAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AdjustAvailabilityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	book, err := h.service.AdjustAvailability(ctx, chi.URLParam(r, "id"), req.Operation)
	if err != nil {
		h.writeError(ctx, w, "adjust availability", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AvailabilityResponse{
		ID:              book.ID.String(),
		AvailableCopies: book.AvailableCopies,
		UpdatedAt:       book.UpdatedAt.UTC(),
	})
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if httputil.IsClientError(err) {
		h.logger.WarnContext(ctx, op+" rejected", "error", err, "request_id", middleware.GetRequestID(ctx))
	} else {
		h.logger.ErrorContext(ctx, op+" failed", "error", err, "request_id", middleware.GetRequestID(ctx))
	}
	httputil.WriteError(w, err)
}
