package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservePreview(t *testing.T) {
	before := testutil.ToFloat64(PreviewsTotal.WithLabelValues(OutcomeSuccess))
	ObservePreview(OutcomeSuccess)
	assert.Equal(t, before+1, testutil.ToFloat64(PreviewsTotal.WithLabelValues(OutcomeSuccess)))
}

func TestObserveChanges(t *testing.T) {
	before := testutil.ToFloat64(DiffChangesTotal.WithLabelValues("Auth"))
	ObserveChanges("Auth", 3)
	ObserveChanges("Auth", 0)
	assert.Equal(t, before+3, testutil.ToFloat64(DiffChangesTotal.WithLabelValues("Auth")))
}

func TestObserveManagementRequest(t *testing.T) {
	okBefore := testutil.ToFloat64(ManagementRequestsTotal.WithLabelValues("200"))
	errBefore := testutil.ToFloat64(ManagementRequestsTotal.WithLabelValues("error"))

	ObserveManagementRequest(200, 20*time.Millisecond)
	ObserveManagementRequest(0, time.Second)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ManagementRequestsTotal.WithLabelValues("200")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(ManagementRequestsTotal.WithLabelValues("error")))
}

func TestHandler(t *testing.T) {
	ObservePreview(OutcomeTooLarge)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `supaconnect_previews_total{outcome="too_large"}`)
}
