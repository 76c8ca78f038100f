package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "bloodbank/pkg/domain"
	"bloodbank/pkg/requestcontext"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	clock time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.clock = time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	s.store = NewMemoryStore()
	s.store.now = func() time.Time { return s.clock }
}

func (s *MemoryStoreSuite) allow(key string) Result {
	res, err := s.store.Allow(context.Background(), key, 3, time.Minute)
	s.Require().NoError(err)
	return res
}

func (s *MemoryStoreSuite) TestAdmitsUpToLimit() {
	for want := 2; want >= 0; want-- {
		res := s.allow("org:a")
		s.True(res.Allowed)
		s.Equal(want, res.Remaining)
	}
	res := s.allow("org:a")
	s.False(res.Allowed)
	s.Equal(time.Minute, res.RetryAfter)
}

func (s *MemoryStoreSuite) TestKeysAreIndependent() {
	for range 3 {
		s.allow("org:a")
	}
	s.True(s.allow("org:b").Allowed)
}

func (s *MemoryStoreSuite) TestWindowSlides() {
	s.allow("org:a")
	s.clock = s.clock.Add(30 * time.Second)
	s.allow("org:a")
	s.allow("org:a")
	s.False(s.allow("org:a").Allowed)

	s.clock = s.clock.Add(31 * time.Second)
	res := s.allow("org:a")
	s.True(res.Allowed)
	s.Equal(0, res.Remaining)
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (Result, error) {
	return Result{}, errors.New("redis down")
}

func serve(t *testing.T, h http.Handler, org id.OrgID) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/components", nil)
	if org != "" {
		req = req.WithContext(requestcontext.WithOrgID(req.Context(), org))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	t.Run("rejects once the org quota is spent", func(t *testing.T) {
		h := New(NewMemoryStore(), 2, time.Minute, nil).Middleware(ok)

		rec := serve(t, h, "org-a")
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
		serve(t, h, "org-a")

		rec = serve(t, h, "org-a")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), `"error":"rate_limit_exceeded"`)

		assert.Equal(t, http.StatusNoContent, serve(t, h, "org-b").Code)
	})

	t.Run("admits when the store fails", func(t *testing.T) {
		h := New(failingStore{}, 1, time.Minute, nil).Middleware(ok)
		assert.Equal(t, http.StatusNoContent, serve(t, h, "org-a").Code)
	})

	t.Run("zero limit disables limiting", func(t *testing.T) {
		h := New(failingStore{}, 0, time.Minute, nil).Middleware(ok)
		rec := serve(t, h, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	})
}

func TestRetrySecondsRoundsUp(t *testing.T) {
	assert.Equal(t, 1, retrySeconds(0))
	assert.Equal(t, 2, retrySeconds(1500*time.Millisecond))
	assert.Equal(t, 60, retrySeconds(time.Minute))
}
