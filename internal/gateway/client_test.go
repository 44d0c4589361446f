package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"smartlib/pkg/requestcontext"
)

type ClientSuite struct {
	suite.Suite
	calls  atomic.Int32
	status func(call int32) int
	delay  time.Duration
	server *httptest.Server
	client *Client

	mu     sync.Mutex
	header http.Header
	method string
	path   string
	body   []byte
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.calls.Store(0)
	s.status = func(int32) int { return http.StatusOK }
	s.delay = 0
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := s.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.header, s.method, s.path, s.body = r.Header.Clone(), r.Method, r.URL.Path, body
		status, delay := s.status, s.delay
		s.mu.Unlock()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status(n))
		_, _ = w.Write([]byte(`{"id":"abc","available_copies":2}`))
	}))
	s.client = New("inventory", s.server.URL, Config{
		Timeout:     200 * time.Millisecond,
		MaxRetries:  3,
		BackoffBase: time.Millisecond,
	},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(NewMetrics(prometheus.NewRegistry())),
	)
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) respondWith(status func(call int32) int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *ClientSuite) get() (*Response, error) {
	return s.client.Do(context.Background(), Request{
		Operation:  "get_book",
		Method:     http.MethodGet,
		Path:       "/books/abc",
		Idempotent: true,
	})
}

// =============================================================================
// Success and classification
// =============================================================================

func (s *ClientSuite) TestSuccess() {
	resp, err := s.get()
	s.Require().NoError(err)

	var body struct {
		ID              string `json:"id"`
		AvailableCopies int    `json:"available_copies"`
	}
	s.Require().NoError(resp.DecodeJSON(&body))
	s.Equal("abc", body.ID)
	s.Equal(2, body.AvailableCopies)
	s.Equal(int32(1), s.calls.Load())
}

func (s *ClientSuite) TestNotFoundIsNotRetried() {
	s.respondWith(func(int32) int { return http.StatusNotFound })

	_, err := s.get()

	s.Require().Error(err)
	s.True(IsNotFound(err))
	s.Equal(int32(1), s.calls.Load())
}

func (s *ClientSuite) TestClientErrorIsRejected() {
	s.respondWith(func(int32) int { return http.StatusBadRequest })

	_, err := s.get()

	s.Require().Error(err)
	s.True(IsRejected(err))
	s.Equal(int32(1), s.calls.Load())

	var gErr *Error
	s.Require().ErrorAs(err, &gErr)
	s.Equal(http.StatusBadRequest, gErr.StatusCode)
	s.Equal("inventory", gErr.Service)
}

// =============================================================================
// Retry behaviour
// =============================================================================

func (s *ClientSuite) TestServerErrorRetriedUntilSuccess() {
	s.respondWith(func(n int32) int {
		if n < 3 {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	})

	_, err := s.get()

	s.Require().NoError(err)
	s.Equal(int32(3), s.calls.Load())
}

func (s *ClientSuite) TestServerErrorExhaustsRetries() {
	s.respondWith(func(int32) int { return http.StatusInternalServerError })

	_, err := s.get()

	s.Require().Error(err)
	s.True(IsUnavailable(err))
	s.Equal(int32(4), s.calls.Load(), "one attempt plus three retries")

	var gErr *Error
	s.Require().ErrorAs(err, &gErr)
	s.Equal(4, gErr.Attempts)
}

func (s *ClientSuite) TestTimeoutIsUnavailableAfterRetries() {
	s.mu.Lock()
	s.delay = time.Second
	s.mu.Unlock()

	_, err := s.get()

	s.Require().Error(err)
	s.True(IsUnavailable(err))
	s.Equal(int32(4), s.calls.Load())
}

func (s *ClientSuite) TestNonIdempotentIsSentOnce() {
	s.respondWith(func(int32) int { return http.StatusBadGateway })

	_, err := s.client.Do(context.Background(), Request{
		Operation: "adjust_availability",
		Method:    http.MethodPatch,
		Path:      "/books/abc/availability",
		Body:      map[string]string{"operation": "decrement"},
	})

	s.Require().Error(err)
	s.True(IsUnavailable(err))
	s.Equal(int32(1), s.calls.Load())
}

// =============================================================================
// Request shape
// =============================================================================

func (s *ClientSuite) TestSendsJSONBodyAndRequestID() {
	ctx := requestcontext.WithRequestID(context.Background(), "req-42")

	_, err := s.client.Do(ctx, Request{
		Operation: "adjust_availability",
		Method:    http.MethodPatch,
		Path:      "/books/abc/availability",
		Body:      map[string]string{"operation": "increment"},
	})

	s.Require().NoError(err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Equal(http.MethodPatch, s.method)
	s.Equal("/books/abc/availability", s.path)
	s.Equal("application/json", s.header.Get("Content-Type"))
	s.Equal("req-42", s.header.Get("X-Request-Id"))

	var sent map[string]string
	s.Require().NoError(json.Unmarshal(s.body, &sent))
	s.Equal("increment", sent["operation"])
}

func TestBackoffIsLinear(t *testing.T) {
	var (
		mu     sync.Mutex
		stamps []time.Time
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	base := 40 * time.Millisecond
	client := New("identity", server.URL, Config{Timeout: time.Second, MaxRetries: 3, BackoffBase: base},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := client.Do(context.Background(), Request{
		Operation: "get_user", Method: http.MethodGet, Path: "/users/1", Idempotent: true,
	})

	require.Error(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, stamps, 4)
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, time.Duration(i)*base, "retry %d waited %s", i, gap)
	}
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New("identity", server.URL, Config{Timeout: time.Second, MaxRetries: 3, BackoffBase: time.Hour},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Do(ctx, Request{Operation: "get_user", Method: http.MethodGet, Path: "/users/1", Idempotent: true})

	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, int32(1), calls.Load())
}
