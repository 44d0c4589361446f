package events

import (
	"context"
	"log/slog"

	"smartlib/internal/loan/models"
)

// LogPublisher writes events to the structured log. It is used when no broker
// is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, evt models.LoanEvent) error {
	p.logger.InfoContext(ctx, "loan event",
		"type", evt.Type,
		"loan_id", evt.LoanID.String(),
		"user_id", evt.UserID.String(),
		"book_id", evt.BookID.String(),
		"status", evt.Status,
		"request_id", evt.RequestID,
	)
	return nil
}
