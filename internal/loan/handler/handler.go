// Package handler exposes the loan service over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"smartlib/internal/loan/models"
	"smartlib/internal/loan/service"
	"smartlib/internal/platform/metrics"
	"smartlib/internal/platform/middleware"
	"smartlib/pkg/platform/httputil"
)

const defaultHandlerTimeout = 30 * time.Second

// Service is the loan orchestrator as seen by the HTTP layer.
type Service interface {
	Issue(ctx context.Context, cmd service.IssueCommand) (*models.Loan, error)
	Return(ctx context.Context, rawLoanID string) (*models.LoanView, error)
	Extend(ctx context.Context, rawLoanID string, days int) (*models.Extension, error)
	Get(ctx context.Context, rawLoanID string) (*models.LoanView, error)
	List(ctx context.Context, rawStatus string) ([]*models.LoanView, error)
	ListByUser(ctx context.Context, rawUserID string) (*models.UserLoans, error)
	ListOverdue(ctx context.Context) ([]*models.LoanView, error)
}

// Handler serves the loan routes.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

// New creates a loan Handler. A zero timeout uses the default.
func New(svc Service, logger *slog.Logger, m *metrics.Metrics, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = defaultHandlerTimeout
	}
	return &Handler{service: svc, logger: logger, metrics: m, timeout: timeout}
}

// Register mounts the loan routes with the standard middleware chain.
func (h *Handler) Register(r chi.Router) {
	loans := chi.NewRouter()
	loans.Use(middleware.Recovery(h.logger))
	loans.Use(middleware.RequestID)
	loans.Use(middleware.RequestTime)
	loans.Use(middleware.Logger(h.logger))
	loans.Use(middleware.Timeout(h.timeout))
	loans.Use(middleware.ContentTypeJSON)
	loans.Use(middleware.LatencyMiddleware(h.metrics))

	loans.Post("/loans", h.handleIssue)
	loans.Get("/loans", h.handleList)
	loans.Get("/loans/overdue", h.handleListOverdue)
	loans.Get("/loans/user/{user_id}", h.handleListByUser)
	loans.Get("/loans/{id}", h.handleGet)
	loans.Patch("/loans/{id}/return", h.handleReturnByPath)
	loans.Put("/loans/{id}/extend", h.handleExtend)
	loans.Post("/returns", h.handleReturn)

	r.Mount("/", loans)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueLoanRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	loan, err := h.service.Issue(ctx, service.IssueCommand{
		UserID:  req.UserID,
		BookID:  req.BookID,
		DueDate: req.DueDate,
	})
	if err != nil {
		h.writeError(ctx, w, "issue loan", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toLoanResponse(loan))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	views, err := h.service.List(ctx, r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(ctx, w, "list loans", err)
		return
	}
	loans := toLoanDetails(views)
	httputil.WriteJSON(w, http.StatusOK, LoanListResponse{Loans: loans, Total: len(loans)})
}

func (h *Handler) handleListOverdue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	views, err := h.service.ListOverdue(ctx)
	if err != nil {
		h.writeError(ctx, w, "list overdue loans", err)
		return
	}
	loans := toLoanDetails(views)
	httputil.WriteJSON(w, http.StatusOK, LoanListResponse{Loans: loans, Total: len(loans)})
}

func (h *Handler) handleListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	history, err := h.service.ListByUser(ctx, chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeError(ctx, w, "list user loans", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UserLoansResponse{
		User:  toUserSummary(history.User),
		Loans: toLoanDetails(history.Loans),
		Total: history.Total,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, "get loan", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLoanDetail(view))
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ReturnLoanRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	h.returnLoan(ctx, w, req.LoanID)
}

func (h *Handler) handleReturnByPath(w http.ResponseWriter, r *http.Request) {
	h.returnLoan(r.Context(), w, chi.URLParam(r, "id"))
}

func (h *Handler) returnLoan(ctx context.Context, w http.ResponseWriter, rawLoanID string) {
	view, err := h.service.Return(ctx, rawLoanID)
	if err != nil {
		h.writeError(ctx, w, "return loan", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLoanDetail(view))
}

func (h *Handler) handleExtend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ExtendLoanRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	ext, err := h.service.Extend(ctx, chi.URLParam(r, "id"), *req.ExtensionDays)
	if err != nil {
		h.writeError(ctx, w, "extend loan", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ExtendLoanResponse{
		LoanResponse:    toLoanResponse(ext.Loan),
		OriginalDueDate: ext.OriginalDueDate.UTC(),
		ExtendedDueDate: ext.Loan.DueDate.UTC(),
	})
}

// writeError logs client errors at warn and everything else at error.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	requestID := middleware.GetRequestID(ctx)
	if httputil.IsClientError(err) {
		h.logger.WarnContext(ctx, op+" rejected", "error", err, "request_id", requestID)
	} else {
		h.logger.ErrorContext(ctx, op+" failed", "error", err, "request_id", requestID)
	}
	httputil.WriteError(w, err)
}
