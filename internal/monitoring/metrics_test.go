package monitoring

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/incore-data/internal/hazus"
)

func TestMetrics_ObserveFetch(t *testing.T) {
	m := NewMetrics("incore")
	m.ObserveFetch("nsi", 200*time.Millisecond, nil)
	m.ObserveFetch("nsi", time.Second, errors.New("boom"))
	m.ObserveFetch("census", 50*time.Millisecond, nil)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.FetchRequests.WithLabelValues("nsi", "ok")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.FetchRequests.WithLabelValues("nsi", "error")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.FetchRequests.WithLabelValues("census", "ok")), 0.001)
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics("incore")
	m.AddStructures(120)
	m.AddStructures(30)
	m.AddBlockGroups(7)

	assert.InDelta(t, 150.0, testutil.ToFloat64(m.StructuresFetched), 0.001)
	assert.InDelta(t, 7.0, testutil.ToFloat64(m.BlockGroupsFetched), 0.001)
}

func TestMetrics_ObserveReport(t *testing.T) {
	m := NewMetrics("incore")
	m.ObserveReport(hazus.Report{Region: hazus.MidWest, Total: 10, Special: 4, Exact: 3, Fallbacks: 2, Unmatched: 1})

	assert.InDelta(t, 4.0, testutil.ToFloat64(m.Classified.WithLabelValues("MidWest", "special")), 0.001)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.Classified.WithLabelValues("MidWest", "fallback")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Classified.WithLabelValues("MidWest", "unmatched")), 0.001)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("incore")
	m.ObserveHTTP("/health", "GET", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `incore_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch("nsi", time.Second, nil)
		m.AddStructures(1)
		m.AddBlockGroups(1)
		m.ObserveReport(hazus.Report{})
		m.ObserveHTTP("/", "GET", "200", time.Second)
	})
	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}
