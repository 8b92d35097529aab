package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sargazo/sargazo-predictor/internal/observability/metrics"
)

func TestNewMetricsIndependentRegistries(t *testing.T) {
	a, err := NewMetrics()
	require.NoError(t, err)
	b, err := NewMetrics()
	require.NoError(t, err)
	assert.NotSame(t, a.Registry(), b.Registry())
}

func TestHandlerExposesPredictorMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	m.Predictor.RecordModelLoad(metrics.LabelCoordinates, time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `sargazo_model_loaded{model="coordinates"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestEndpointLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m, err := NewMetrics()
	require.NoError(t, err)
	ep, err := NewEndpoint("127.0.0.1:0", m)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done, err := ep.Start(ctx)
	require.NoError(t, err)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + ep.Addr() + "/metrics")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	client.CloseIdleConnections()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("metrics endpoint did not stop")
	}
}

func TestNewEndpointValidation(t *testing.T) {
	_, err := NewEndpoint("", &Metrics{})
	require.Error(t, err)
	_, err = NewEndpoint(":9090", nil)
	require.Error(t, err)
}
