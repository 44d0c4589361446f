package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"smartlib/internal/gateway"
	identityhandler "smartlib/internal/identity/handler"
	identityservice "smartlib/internal/identity/service"
	identitystore "smartlib/internal/identity/store"
	inventoryhandler "smartlib/internal/inventory/handler"
	inventoryservice "smartlib/internal/inventory/service"
	inventorystore "smartlib/internal/inventory/store"
	"smartlib/internal/loan/adapters"
	"smartlib/internal/loan/events"
	"smartlib/internal/loan/ledger"
	"smartlib/internal/loan/models"
	"smartlib/internal/loan/service"
	loanstore "smartlib/internal/loan/store"
	id "smartlib/pkg/domain"
	"smartlib/pkg/platform/httputil"
)

// =============================================================================
// Loan HTTP Suite
// =============================================================================
// The loan router runs in-process against real inventory and identity services
// served over HTTP, so every saga crosses the gateway exactly as in production.

type LoanHTTPSuite struct {
	suite.Suite
	logger    *slog.Logger
	inventory *httptest.Server
	identity  *httptest.Server
	loanStore *loanstore.InMemoryStore
	router    http.Handler
}

func TestLoanHTTPSuite(t *testing.T) {
	suite.Run(t, new(LoanHTTPSuite))
}

func (s *LoanHTTPSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	invSvc, err := inventoryservice.New(inventorystore.NewInMemory(), inventoryservice.WithLogger(s.logger))
	s.Require().NoError(err)
	invRouter := chi.NewRouter()
	inventoryhandler.New(invSvc, s.logger, nil).Register(invRouter)
	s.inventory = httptest.NewServer(invRouter)
	s.T().Cleanup(s.inventory.Close)

	idSvc, err := identityservice.New(identitystore.NewInMemory(), identityservice.WithLogger(s.logger))
	s.Require().NoError(err)
	idRouter := chi.NewRouter()
	identityhandler.New(idSvc, s.logger, nil).Register(idRouter)
	s.identity = httptest.NewServer(idRouter)
	s.T().Cleanup(s.identity.Close)

	s.router = s.newLoanRouter(s.identity.URL, gateway.Config{
		Timeout:     2 * time.Second,
		MaxRetries:  3,
		BackoffBase: 10 * time.Millisecond,
	})
}

func (s *LoanHTTPSuite) newLoanRouter(identityURL string, cfg gateway.Config) http.Handler {
	s.loanStore = loanstore.NewInMemory()
	svc, err := service.New(
		adapters.NewIdentityClient(gateway.New("identity", identityURL, cfg, gateway.WithLogger(s.logger))),
		adapters.NewInventoryClient(gateway.New("inventory", s.inventory.URL, cfg, gateway.WithLogger(s.logger))),
		ledger.New(s.loanStore),
		service.WithLogger(s.logger),
		service.WithEventPublisher(events.NewLogPublisher(s.logger)),
	)
	s.Require().NoError(err)

	r := chi.NewRouter()
	New(svc, s.logger, nil, 0).Register(r)
	return r
}

// =============================================================================
// Helpers
// =============================================================================

func (s *LoanHTTPSuite) post(baseURL, path string, body any) *http.Response {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)
	resp, err := http.Post(baseURL+path, "application/json", bytes.NewReader(payload))
	s.Require().NoError(err)
	return resp
}

func (s *LoanHTTPSuite) seedBook(copies int) string {
	bookID := id.NewBookID().String()
	resp := s.post(s.inventory.URL, "/books", map[string]any{
		"id": bookID, "title": "Dune", "author": "Frank Herbert", "copies": copies,
	})
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	return bookID
}

func (s *LoanHTTPSuite) seedUser() string {
	userID := id.NewUserID().String()
	resp := s.post(s.identity.URL, "/users", map[string]any{
		"id": userID, "name": "Ada", "email": "ada-" + userID[:8] + "@example.com",
	})
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	return userID
}

func (s *LoanHTTPSuite) availableCopies(bookID string) int {
	resp, err := http.Get(s.inventory.URL + "/books/" + bookID)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var book inventoryhandler.BookResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&book))
	s.Require().GreaterOrEqual(book.AvailableCopies, 0)
	s.Require().LessOrEqual(book.AvailableCopies, book.Copies)
	return book.AvailableCopies
}

func (s *LoanHTTPSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func dueIn(d time.Duration) string {
	return time.Now().Add(d).UTC().Format(time.RFC3339)
}

func (s *LoanHTTPSuite) issue(userID, bookID string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, "/loans", map[string]string{
		"user_id": userID, "book_id": bookID, "due_date": dueIn(7 * 24 * time.Hour),
	})
}

func (s *LoanHTTPSuite) issueOK(userID, bookID string) LoanResponse {
	rec := s.issue(userID, bookID)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var loan LoanResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&loan))
	return loan
}

func (s *LoanHTTPSuite) decodeError(rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	var resp httputil.ErrorResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// =============================================================================
// Issue / Return Scenarios
// =============================================================================

func (s *LoanHTTPSuite) TestSingleCopyLifecycle() {
	userID := s.seedUser()
	bookID := s.seedBook(1)

	loan := s.issueOK(userID, bookID)
	s.Equal("ACTIVE", loan.Status)
	s.Equal(userID, loan.UserID)
	s.Equal(bookID, loan.BookID)
	s.Nil(loan.ReturnDate)
	s.Equal(0, s.availableCopies(bookID))

	rec := s.issue(s.seedUser(), bookID)
	s.Equal(http.StatusBadRequest, rec.Code)
	errResp := s.decodeError(rec)
	s.Equal("invalid_state", errResp.Error)
	s.Equal(models.ReasonNoCopiesAvailable, errResp.Reason)
	s.Equal(0, s.availableCopies(bookID), "a refused issuance does not touch inventory")

	rec = s.do(http.MethodPost, "/returns", map[string]string{"loan_id": loan.ID})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var returned LoanDetailResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&returned))
	s.Equal("RETURNED", returned.Status)
	s.NotNil(returned.ReturnDate)
	s.Equal("Dune", returned.Book.Title)
	s.Equal("Frank Herbert", returned.Book.Author)
	s.Equal(1, s.availableCopies(bookID))

	rec = s.do(http.MethodPatch, "/loans/"+loan.ID+"/return", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(models.ReasonAlreadyReturned, s.decodeError(rec).Reason)
	s.Equal(1, s.availableCopies(bookID), "a second return never releases twice")
}

func (s *LoanHTTPSuite) TestIssueThenReturnRestoresAvailability() {
	userID := s.seedUser()
	bookID := s.seedBook(3)

	for range 3 {
		before := s.availableCopies(bookID)
		loan := s.issueOK(userID, bookID)
		s.Equal(before-1, s.availableCopies(bookID))

		rec := s.do(http.MethodPatch, "/loans/"+loan.ID+"/return", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal(before, s.availableCopies(bookID))
	}
}

func (s *LoanHTTPSuite) TestConcurrentIssuanceNeverOverbooks() {
	const copies, requests = 2, 10
	userID := s.seedUser()
	bookID := s.seedBook(copies)

	var (
		wg       sync.WaitGroup
		created  atomic.Int32
		refused  atomic.Int32
		mu       sync.Mutex
		statuses []int
	)
	for range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := s.issue(userID, bookID)
			mu.Lock()
			statuses = append(statuses, rec.Code)
			mu.Unlock()
			switch rec.Code {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusBadRequest:
				refused.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(copies), created.Load(), "statuses: %v", statuses)
	s.Equal(int32(requests-copies), refused.Load())
	s.Equal(0, s.availableCopies(bookID))

	active, err := s.loanStore.List(context.Background(), models.Filter{})
	s.Require().NoError(err)
	s.Len(active, copies)
}

func (s *LoanHTTPSuite) TestConcurrentReturnsReleaseOnce() {
	userID := s.seedUser()
	bookID := s.seedBook(1)
	loan := s.issueOK(userID, bookID)

	const requests = 5
	var (
		wg sync.WaitGroup
		ok atomic.Int32
	)
	for range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rec := s.do(http.MethodPatch, "/loans/"+loan.ID+"/return", nil); rec.Code == http.StatusOK {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), ok.Load())
	s.Equal(1, s.availableCopies(bookID))
}

func (s *LoanHTTPSuite) TestIssueValidation() {
	userID := s.seedUser()
	bookID := s.seedBook(1)

	s.Run("malformed JSON", func() {
		req := httptest.NewRequest(http.MethodPost, "/loans", bytes.NewReader([]byte("{")))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("missing fields", func() {
		rec := s.do(http.MethodPost, "/loans", map[string]string{"user_id": userID})
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal(models.ReasonInvalidRequest, s.decodeError(rec).Reason)
	})

	s.Run("date-only due date is accepted", func() {
		rec := s.do(http.MethodPost, "/loans", map[string]string{
			"user_id": userID, "book_id": bookID, "due_date": time.Now().AddDate(0, 0, 10).Format("2006-01-02"),
		})
		s.Equal(http.StatusCreated, rec.Code, rec.Body.String())
	})

	s.Run("past due date", func() {
		rec := s.do(http.MethodPost, "/loans", map[string]string{
			"user_id": userID, "book_id": bookID, "due_date": dueIn(-time.Hour),
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown user", func() {
		rec := s.issue(id.NewUserID().String(), bookID)
		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal(models.ReasonUserNotFound, s.decodeError(rec).Reason)
	})

	s.Run("unknown book", func() {
		rec := s.issue(userID, id.NewBookID().String())
		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal(models.ReasonBookNotFound, s.decodeError(rec).Reason)
	})
}

// =============================================================================
// Dependency Failure
// =============================================================================

func (s *LoanHTTPSuite) TestIdentityTimeoutLeavesNoTrace() {
	var attempts atomic.Int32
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	s.T().Cleanup(func() {
		close(release)
		slow.Close()
	})

	s.router = s.newLoanRouter(slow.URL, gateway.Config{
		Timeout:     50 * time.Millisecond,
		MaxRetries:  3,
		BackoffBase: time.Millisecond,
	})
	bookID := s.seedBook(1)

	rec := s.issue(id.NewUserID().String(), bookID)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	errResp := s.decodeError(rec)
	s.Equal("dependency_unavailable", errResp.Error)
	s.Equal(models.ReasonIdentityUnavailable, errResp.Reason)
	s.Equal(int32(4), attempts.Load(), "one attempt plus three retries")

	loans, err := s.loanStore.List(context.Background(), models.Filter{})
	s.Require().NoError(err)
	s.Empty(loans)
	s.Equal(1, s.availableCopies(bookID))
}

func (s *LoanHTTPSuite) TestInventoryDownOnReturnKeepsLoanActive() {
	userID := s.seedUser()
	bookID := s.seedBook(1)
	loan := s.issueOK(userID, bookID)

	s.inventory.Close()

	rec := s.do(http.MethodPatch, "/loans/"+loan.ID+"/return", nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal(models.ReasonInventoryUnavailable, s.decodeError(rec).Reason)

	loanID, err := id.ParseLoanID(loan.ID)
	s.Require().NoError(err)
	stored, err := s.loanStore.FindByID(context.Background(), loanID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, stored.Status)
}

// =============================================================================
// Extension
// =============================================================================

func (s *LoanHTTPSuite) TestExtendTwiceThenLimit() {
	loan := s.issueOK(s.seedUser(), s.seedBook(1))
	path := "/loans/" + loan.ID + "/extend"

	for want := 1; want <= models.MaxExtensions; want++ {
		rec := s.do(http.MethodPut, path, map[string]int{"extension_days": 5})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		var ext ExtendLoanResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&ext))
		s.Equal(want, ext.ExtensionsCount)
		s.Equal(5*24*time.Hour, ext.ExtendedDueDate.Sub(ext.OriginalDueDate))
	}

	rec := s.do(http.MethodPut, path, map[string]int{"extension_days": 5})
	s.Equal(http.StatusBadRequest, rec.Code)
	errResp := s.decodeError(rec)
	s.Equal("limit_exceeded", errResp.Error)
	s.Equal(models.ReasonExtensionLimit, errResp.Reason)
}

func (s *LoanHTTPSuite) TestExtendValidation() {
	loan := s.issueOK(s.seedUser(), s.seedBook(1))
	path := "/loans/" + loan.ID + "/extend"

	rec := s.do(http.MethodPut, path, map[string]any{})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, path, map[string]int{"extension_days": 0})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(models.ReasonInvalidExtension, s.decodeError(rec).Reason)

	rec = s.do(http.MethodPut, path, map[string]int{"extension_days": 213504})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(models.ReasonInvalidExtension, s.decodeError(rec).Reason)

	rec = s.do(http.MethodGet, "/loans/"+loan.ID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var detail LoanDetailResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&detail))
	s.Equal(0, detail.ExtensionsCount)
	s.True(detail.DueDate.Equal(loan.DueDate))

	rec = s.do(http.MethodPut, "/loans/"+id.NewLoanID().String()+"/extend", map[string]int{"extension_days": 3})
	s.Equal(http.StatusNotFound, rec.Code)
}

// =============================================================================
// Overdue and Read Side
// =============================================================================

// seedOverdueLoan writes a loan that fell due three days ago straight into the ledger.
func (s *LoanHTTPSuite) seedOverdueLoan(userID, bookID string) *models.Loan {
	uid, err := id.ParseUserID(userID)
	s.Require().NoError(err)
	bid, err := id.ParseBookID(bookID)
	s.Require().NoError(err)
	issued := time.Now().Add(-10 * 24 * time.Hour).UTC()
	loan, err := models.NewLoan(id.NewLoanID(), uid, bid, issued.Add(7*24*time.Hour), issued)
	s.Require().NoError(err)
	s.Require().NoError(s.loanStore.Create(context.Background(), loan))
	return loan
}

func (s *LoanHTTPSuite) TestOverdueLoans() {
	userID := s.seedUser()
	bookID := s.seedBook(2)
	overdue := s.seedOverdueLoan(userID, bookID)
	s.issueOK(userID, bookID)

	s.Run("overdue listing carries days and summaries", func() {
		rec := s.do(http.MethodGet, "/loans/overdue", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var list LoanListResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&list))
		s.Require().Equal(1, list.Total)
		got := list.Loans[0]
		s.Equal(overdue.ID.String(), got.ID)
		s.True(got.Overdue)
		s.Require().NotNil(got.DaysOverdue)
		s.Equal(3, *got.DaysOverdue)
		s.Require().NotNil(got.User)
		s.Equal("Ada", got.User.Name)
		s.Equal("Dune", got.Book.Title)
	})

	s.Run("overdue loan cannot be extended whatever its count", func() {
		rec := s.do(http.MethodPut, "/loans/"+overdue.ID.String()+"/extend", map[string]int{"extension_days": 30})
		s.Equal(http.StatusBadRequest, rec.Code)
		errResp := s.decodeError(rec)
		s.Equal("invalid_state", errResp.Error)
		s.Equal(models.ReasonLoanOverdue, errResp.Reason)
	})

	s.Run("single loan shows the overdue flag", func() {
		rec := s.do(http.MethodGet, "/loans/"+overdue.ID.String(), nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var got LoanDetailResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&got))
		s.True(got.Overdue)
	})
}

func (s *LoanHTTPSuite) TestListings() {
	userID := s.seedUser()
	bookID := s.seedBook(3)
	first := s.issueOK(userID, bookID)
	s.issueOK(userID, bookID)
	rec := s.do(http.MethodPatch, "/loans/"+first.ID+"/return", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	s.Run("status filter is case-insensitive", func() {
		rec := s.do(http.MethodGet, "/loans?status=returned", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var list LoanListResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&list))
		s.Require().Equal(1, list.Total)
		s.Equal("RETURNED", list.Loans[0].Status)
		s.Equal("Dune", list.Loans[0].Book.Title)
	})

	s.Run("invalid status", func() {
		rec := s.do(http.MethodGet, "/loans?status=lost", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal(models.ReasonInvalidStatus, s.decodeError(rec).Reason)
	})

	s.Run("all loans", func() {
		rec := s.do(http.MethodGet, "/loans", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var list LoanListResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&list))
		s.Equal(2, list.Total)
	})

	s.Run("user history", func() {
		rec := s.do(http.MethodGet, "/loans/user/"+userID, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var history UserLoansResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&history))
		s.Equal(2, history.Total)
		s.Equal(userID, history.User.ID)
	})

	s.Run("history of unknown user", func() {
		rec := s.do(http.MethodGet, "/loans/user/"+id.NewUserID().String(), nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("unknown loan", func() {
		rec := s.do(http.MethodGet, "/loans/"+id.NewLoanID().String(), nil)
		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal(models.ReasonLoanNotFound, s.decodeError(rec).Reason)
	})

	s.Run("request id is echoed", func() {
		req := httptest.NewRequest(http.MethodGet, "/loans", nil)
		req.Header.Set("X-Request-Id", "trace-"+strconv.Itoa(42))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal("trace-42", rec.Header().Get("X-Request-Id"))
	})
}
