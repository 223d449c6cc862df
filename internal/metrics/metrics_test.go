package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRequestMetrics(t *testing.T) {
	m := New()
	done := m.RequestStarted()
	assert.Contains(t, scrape(t, m), "http_inflight_requests 1")
	done(http.MethodGet, "/api/records/{token}", http.StatusOK)
	m.RequestStarted()(http.MethodGet, "", http.StatusNotFound)

	out := scrape(t, m)
	assert.Contains(t, out, "http_inflight_requests 0")
	assert.Contains(t, out, `http_requests_total{method="GET",route="/api/records/{token}",status="200"} 1`)
	assert.Contains(t, out, `http_requests_total{method="GET",route="UNMATCHED",status="404"} 1`)
	assert.Contains(t, out, `http_request_duration_seconds_count{method="GET",route="/api/records/{token}"} 1`)
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.RecordOp("created")
	m.Reaction("dislike")
	m.JanitorRemoved("expired", 3)
	m.JanitorRemoved("orphan", 0)
	m.MailDelivered(errors.New("x"))
	m.MailDelivered(nil)

	out := scrape(t, m)
	assert.Contains(t, out, `pastebox_records_total{op="created"} 1`)
	assert.Contains(t, out, `pastebox_reactions_total{kind="dislike"} 1`)
	assert.Contains(t, out, `pastebox_janitor_removed_total{kind="expired"} 3`)
	assert.NotContains(t, out, `pastebox_janitor_removed_total{kind="orphan"}`)
	assert.Contains(t, out, `pastebox_mail_delivered_total{result="error"} 1`)
	assert.Contains(t, out, `pastebox_mail_delivered_total{result="ok"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RequestStarted()("GET", "/", 200)
	m.RecordOp("created")
	m.Reaction("like")
	m.JanitorRemoved("expired", 1)
	m.MailDelivered(nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
