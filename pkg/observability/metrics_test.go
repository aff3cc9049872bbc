package observability

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_Registers(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.LoginAttemptsTotal.WithLabelValues("success").Inc()
	m.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Add(3)
	m.RateLimitRejections.Inc()

	if got := testutil.ToFloat64(m.LoginAttemptsTotal.WithLabelValues("invalid_credentials")); got != 3 {
		t.Errorf("invalid_credentials counter = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.RateLimitRejections); got != 1 {
		t.Errorf("rate limit counter = %v, want 1", got)
	}
}

func TestObserveDBStats(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.ObserveDBStats(sql.DBStats{InUse: 4, Idle: 6})

	if got := testutil.ToFloat64(m.DBConnectionsActive); got != 4 {
		t.Errorf("active gauge = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.DBConnectionsIdle); got != 6 {
		t.Errorf("idle gauge = %v, want 6", got)
	}
}

func TestInstrumentHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	handler := m.InstrumentHandler("/api/v1/auth/login", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "http://api.test/api/v1/auth/login", nil))

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/auth/login", "401")); got != 1 {
		t.Errorf("http requests counter = %v, want 1", got)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.TokensIssuedTotal.WithLabelValues("login").Inc()

	rr := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rr, httptest.NewRequest("GET", "http://api.test/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "parley_tokens_issued_total") {
		t.Error("metrics output missing parley_tokens_issued_total")
	}
}
