package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	metrics, err := NewMetrics()
	require.NoError(t, err)

	assert.NotNil(t, metrics.RequestCount)
	assert.NotNil(t, metrics.RequestDuration)
	assert.NotNil(t, metrics.ResponseSize)
	assert.NotNil(t, metrics.ActiveRequests)
	assert.NotNil(t, metrics.HealthStatus)
	assert.NotNil(t, metrics.registry)
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	_, err := NewMetrics()
	require.NoError(t, err)
	_, err = NewMetrics()
	assert.NoError(t, err, "each instance must own its registry")
}

func TestMetrics_RecordRequest(t *testing.T) {
	metrics, err := NewMetrics()
	require.NoError(t, err)

	metrics.RecordRequest("GET", "/health", 200, 10*time.Millisecond, 96)
	metrics.RecordRequest("GET", "/health", 200, 12*time.Millisecond, 96)
	metrics.RecordRequest("GET", "/api", 200, 5*time.Millisecond, 150)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RequestCount.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RequestCount.WithLabelValues("GET", "/api", "200")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.RequestDuration))
}

func TestMetrics_SetHealthStatus(t *testing.T) {
	metrics, err := NewMetrics()
	require.NoError(t, err)

	metrics.SetHealthStatus(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HealthStatus))

	metrics.SetHealthStatus(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.HealthStatus))
}

func TestMetrics_SetInfo(t *testing.T) {
	metrics, err := NewMetrics()
	require.NoError(t, err)

	metrics.SetInfo("MSY API Core", "1.0.0")
	metrics.SetInfo("MSY API Core", "1.1.0")

	expected := `
# HELP app_info Service identity, always 1
# TYPE app_info gauge
app_info{service="MSY API Core",version="1.1.0"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(metrics.Info, strings.NewReader(expected)))
}

func TestMetrics_Handler(t *testing.T) {
	metrics, err := NewMetrics()
	require.NoError(t, err)
	metrics.RecordRequest("GET", "/health", 200, time.Millisecond, 10)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `http_requests_total{endpoint="/health",method="GET",status_code="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
