package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/merchant-catalog/internal/handler"
	"github.com/xenking/merchant-catalog/pkg/health"
	"github.com/xenking/merchant-catalog/pkg/httpmiddleware"
)

func newTestRouter(t *testing.T) (http.Handler, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	hs := health.New()
	hs.SetReady(true)
	h := handler.NewHandler(handler.HandlerConfig{}, nil)
	return newRouter(zap.New(core), tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider(), hs, h), logs
}

func TestRouter_Probes(t *testing.T) {
	r, logs := newTestRouter(t)

	for _, path := range []string{"/livez", "/readyz"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get(httpmiddleware.HeaderRequestID), path)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String(), path)
	}
	assert.Equal(t, 2, logs.FilterMessage("Request completed").Len())
}

func TestRouter_APILogsRouteAndRequestID(t *testing.T) {
	r, logs := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/products/abc", nil)
	req.Header.Set(httpmiddleware.HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(httpmiddleware.HeaderRequestID))

	entries := logs.FilterMessage("Request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "/api/products/{id}", fields["route"])
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
}
