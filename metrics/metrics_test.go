package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusClass(t *testing.T) {
	testCases := map[int]string{200: "2xx", 201: "2xx", 302: "3xx", 404: "4xx", 409: "4xx", 503: "5xx", 0: "unknown"}
	for code, expected := range testCases {
		assert.Equal(t, expected, StatusClass(code), code)
	}
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(decisionsTotal.WithLabelValues("STEWARD", "APPROVED"))
	RecordDecision("STEWARD", "APPROVED")
	assert.Equal(t, before+1, testutil.ToFloat64(decisionsTotal.WithLabelValues("STEWARD", "APPROVED")))

	before = testutil.ToFloat64(transitionsTotal.WithLabelValues("REJECTED"))
	RecordTransition("REJECTED")
	assert.Equal(t, before+1, testutil.ToFloat64(transitionsTotal.WithLabelValues("REJECTED")))

	RecordCreated()
	RecordProvisioning("ok")
	RecordHTTPRequest(http.MethodGet, "/health", http.StatusOK, 0.01)

	recorder := httptest.NewRecorder()
	Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "accessflow_decisions_total")
	assert.Contains(t, recorder.Body.String(), "accessflow_http_requests_total")
}
