package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"smartlib/internal/loan/models"
	id "smartlib/pkg/domain"
	"smartlib/pkg/platform/sentinel"
)

// enrichConcurrency caps parallel collaborator lookups per listing.
const enrichConcurrency = 8

// enrich attaches book summaries, and user summaries when withUsers is set, to
// loans. Each distinct book or user is looked up once. Lookups that fail fall
// back to placeholders, so enrich never fails.
func (s *Service) enrich(ctx context.Context, loans []*models.Loan, now time.Time, withUsers bool) []*models.LoanView {
	var (
		bookIDs []id.BookID
		userIDs []id.UserID
		seenB   = make(map[id.BookID]bool)
		seenU   = make(map[id.UserID]bool)
	)
	for _, loan := range loans {
		if !seenB[loan.BookID] {
			seenB[loan.BookID] = true
			bookIDs = append(bookIDs, loan.BookID)
		}
		if withUsers && !seenU[loan.UserID] {
			seenU[loan.UserID] = true
			userIDs = append(userIDs, loan.UserID)
		}
	}

	var (
		mu    sync.Mutex
		books = make(map[id.BookID]models.BookSummary, len(bookIDs))
		users = make(map[id.UserID]models.UserSummary, len(userIDs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for _, bookID := range bookIDs {
		g.Go(func() error {
			summary := s.bookSummary(gctx, bookID)
			mu.Lock()
			books[bookID] = summary
			mu.Unlock()
			return nil
		})
	}
	for _, userID := range userIDs {
		g.Go(func() error {
			summary := s.userSummary(gctx, userID)
			mu.Lock()
			users[userID] = summary
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	views := make([]*models.LoanView, 0, len(loans))
	for _, loan := range loans {
		view := models.NewLoanView(loan, books[loan.BookID], now)
		if withUsers {
			user := users[loan.UserID]
			view.User = &user
		}
		views = append(views, view)
	}
	return views
}

// bookSummary reads through the cache to the inventory service, falling back to
// the Unknown placeholder.
func (s *Service) bookSummary(ctx context.Context, bookID id.BookID) models.BookSummary {
	if s.cache != nil {
		summary, err := s.cache.Get(ctx, bookID)
		if err == nil {
			return *summary
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "book cache read failed", "book_id", bookID.String(), "error", err)
		}
	}
	book, err := s.inventory.GetBook(ctx, bookID)
	if err != nil {
		s.metrics.IncrementEnrichmentFallback("book")
		s.logger.WarnContext(ctx, "book enrichment fell back to placeholder", "book_id", bookID.String(), "error", err)
		return models.UnknownBook(bookID)
	}
	summary := book.Summary()
	s.cacheBook(ctx, summary)
	return summary
}

func (s *Service) userSummary(ctx context.Context, userID id.UserID) models.UserSummary {
	user, err := s.identity.GetUser(ctx, userID)
	if err != nil {
		s.metrics.IncrementEnrichmentFallback("user")
		s.logger.WarnContext(ctx, "user enrichment fell back to placeholder", "user_id", userID.String(), "error", err)
		return models.UnknownUser(userID)
	}
	return *user
}

func (s *Service) cacheBook(ctx context.Context, summary models.BookSummary) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, summary); err != nil {
		s.logger.WarnContext(ctx, "book cache write failed", "book_id", summary.ID.String(), "error", err)
	}
}
