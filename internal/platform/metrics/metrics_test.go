package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAndServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTP(reg)

	m.Observe("/v1/units/{unitID}", http.MethodGet, http.StatusOK, time.Now())
	m.Observe("/v1/units/{unitID}", http.MethodGet, http.StatusNotFound, time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/v1/units/{unitID}", "GET", "404")))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bloodbank_http_requests_total")
}
