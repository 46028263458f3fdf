package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveLoad(t *testing.T) {
	before := testutil.ToFloat64(DatasetLoadsTotal.WithLabelValues("test_ds", "error"))
	ObserveLoad("test_ds", 10*time.Millisecond, errors.New("boom"))
	ObserveLoad("test_ds", 10*time.Millisecond, nil)

	assert.Equal(t, before+1, testutil.ToFloat64(DatasetLoadsTotal.WithLabelValues("test_ds", "error")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(DatasetLoadsTotal.WithLabelValues("test_ds", "ok")), 1.0)
}

func TestObserveScoring(t *testing.T) {
	before := testutil.ToFloat64(ScoringRequestsTotal.WithLabelValues("block"))
	ObserveScoring("block", 12, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(ScoringRequestsTotal.WithLabelValues("block")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveScoring("gp", 3, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leaf_scoring_requests_total")
	assert.Contains(t, rec.Body.String(), "leaf_scored_units")
}
