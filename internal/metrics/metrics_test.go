package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentHandler_LabelsByPattern(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/topups/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.InstrumentHandler(mux)

	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodPost, "/api/topups/"+id+"/approve", nil)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/topups/{id}/approve", "404"))
	assert.Equal(t, float64(2), got)
}

func TestHandler_ExposesLifecycleCounters(t *testing.T) {
	m := New()
	m.ObserveSubmission("topup", "accepted")
	m.ObserveResolution("withdraw", "reject", "ok")
	m.ObserveNotification("sent")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`reviewcash_lifecycle_submissions_total{kind="topup",outcome="accepted"} 1`,
		`reviewcash_lifecycle_resolutions_total{kind="withdraw",outcome="ok",resolution="reject"} 1`,
		`reviewcash_notify_deliveries_total{result="sent"} 1`,
	} {
		assert.True(t, strings.Contains(string(body), want), "missing %s", want)
	}
}
