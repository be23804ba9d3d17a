package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTPRequest("GET", "/api/events", 200, time.Millisecond)
		m.RecordDatabaseQuery(DBQueryTypeSelect, true, time.Millisecond)
		m.RecordImport(3, 1)
		m.RecordReplace(ReplaceOutcomeSuccess)
		m.RecordCacheLookup(true)
		m.RecordPublish("event.created", false)
		m.RecordBackup(true)
	})
	assert.Nil(t, m.Registry())
}

func TestRecordImport(t *testing.T) {
	m := New()
	m.RecordImport(3, 1)
	m.RecordImport(2, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Contains(t, rec.Body.String(), `nmreggae_import_rows_total{result="accepted"} 5`)
	assert.Contains(t, rec.Body.String(), `nmreggae_import_rows_total{result="skipped"} 1`)
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.RecordReplace(ReplaceOutcomeFailure)
	m.ObserveHTTPRequest("POST", "", 500, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `nmreggae_replace_all_total{outcome="failure"} 1`)
	assert.Contains(t, body, `nmreggae_http_requests_total{method="POST",route="unmatched",status="500"} 1`)
}
