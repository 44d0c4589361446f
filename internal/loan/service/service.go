// Package service orchestrates the loan sagas: issuance and return coordinate
// the identity service, the inventory service and the ledger without a shared
// transaction.
//
// Every saga step runs on a context detached from the caller so a client that
// disconnects mid-saga cannot abort a reservation halfway. Steps are traced and
// timed individually.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"smartlib/internal/loan/metrics"
	"smartlib/internal/loan/models"
	"smartlib/internal/loan/ports"
	id "smartlib/pkg/domain"
	dErrors "smartlib/pkg/domain-errors"
	"smartlib/pkg/requestcontext"
)

const (
	sagaIssue  = "issue"
	sagaReturn = "return"
	sagaExtend = "extend"

	outcomeSuccess = "success"
	outcomeFailure = "failure"

	defaultPublishTimeout = 5 * time.Second
)

// Type aliases keep call sites short.
type (
	Identity       = ports.Identity
	Inventory      = ports.Inventory
	Ledger         = ports.Ledger
	BookCache      = ports.BookCache
	EventPublisher = ports.EventPublisher
)

// Service runs the loan sagas and the enriched read side.
type Service struct {
	identity   Identity
	inventory  Inventory
	ledger     Ledger
	cache      BookCache
	publisher  EventPublisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	locks      *loanLocks
	compensate bool

	publishTimeout time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer("smartlib/loan") }
}

// WithBookCache enables the book summary cache used by enrichment.
func WithBookCache(c BookCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithEventPublisher enables lifecycle events. Publishing is best effort.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithCompensation toggles the compensating increment after a failed ledger write
// during issuance. Enabled by default.
func WithCompensation(enabled bool) Option {
	return func(s *Service) { s.compensate = enabled }
}

// WithPublishTimeout bounds each lifecycle event publish. Non-positive values keep the default.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

func New(identity Identity, inventory Inventory, ledger Ledger, opts ...Option) (*Service, error) {
	if identity == nil {
		return nil, errors.New("identity client is required")
	}
	if inventory == nil {
		return nil, errors.New("inventory client is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	s := &Service{
		identity:   identity,
		inventory:  inventory,
		ledger:     ledger,
		logger:     slog.Default(),
		tracer:     otel.Tracer("smartlib/loan"),
		locks:      &loanLocks{},
		compensate: true,

		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// step runs one saga step inside its own span and records its duration.
func (s *Service) step(ctx context.Context, saga, name string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, saga+"."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
		span.RecordError(err)
		span.SetStatus(codes.Error, outcomeOf(err))
	}
	s.metrics.ObserveStep(saga, name, outcome, time.Since(start))
	s.logger.DebugContext(ctx, "saga step finished",
		"saga", saga,
		"step", name,
		"outcome", outcome,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return err
}

// begin detaches ctx from the caller and opens the saga span.
func (s *Service) begin(ctx context.Context, saga string) (context.Context, trace.Span) {
	ctx = context.WithoutCancel(ctx)
	return s.tracer.Start(ctx, "loan."+saga, trace.WithAttributes(
		attribute.String("request_id", requestcontext.RequestID(ctx)),
	))
}

// finish records the saga outcome and logs failures at a level matching their class.
func (s *Service) finish(ctx context.Context, span trace.Span, saga string, loanID id.LoanID, err error) {
	outcome := outcomeOf(err)
	s.metrics.IncrementSaga(saga, outcome)
	attrs := []any{
		"saga", saga,
		"outcome", outcome,
		"request_id", requestcontext.RequestID(ctx),
	}
	if !loanID.IsNil() {
		attrs = append(attrs, "loan_id", loanID.String())
		span.SetAttributes(attribute.String("loan_id", loanID.String()))
	}
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "loan saga completed", attrs...)
	case isServerFailure(err):
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.logger.ErrorContext(ctx, "loan saga failed", append(attrs, "error", err)...)
	default:
		span.SetStatus(codes.Error, outcome)
		s.logger.WarnContext(ctx, "loan saga rejected", append(attrs, "error", err)...)
	}
}

// publish emits evt when a publisher is configured. Failures never reach the caller,
// and a stalled broker costs the caller at most publishTimeout. Callers must not
// hold a loan lock.
func (s *Service) publish(ctx context.Context, evt models.LoanEvent) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.metrics.IncrementPublishFailure(string(evt.Type))
		s.logger.WarnContext(ctx, "failed to publish loan event",
			"event_type", string(evt.Type),
			"loan_id", evt.LoanID.String(),
			"error", err,
		)
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	if reason := dErrors.ReasonOf(err); reason != "" {
		return reason
	}
	return string(dErrors.CodeOf(err))
}

func isServerFailure(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeInvariantViolation, dErrors.CodeDependencyUnavailable, dErrors.CodeTimeout:
		return true
	}
	return false
}

// invalidRequest tags a parse failure with the invalid_request reason.
func invalidRequest(err error) error {
	if de, ok := dErrors.As(err); ok {
		if de.Reason != "" {
			return de
		}
		return de.WithReason(models.ReasonInvalidRequest)
	}
	return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request").WithReason(models.ReasonInvalidRequest)
}
