package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/courierfee/courierfee/internal/api/middleware"
)

func TestTracing_NamesSpanByRoute(t *testing.T) {
	sr, cleanup := setupTestTracer()
	defer cleanup()

	r := chi.NewRouter()
	r.Use(middleware.Tracing("test-service"))
	r.Get("/v1/delivery/{city}/{vehicleType}", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, trace.SpanFromContext(r.Context()).SpanContext().IsValid())
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/delivery/tartu/bike", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /v1/delivery/{city}/{vehicleType}", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	assert.Contains(t, spans[0].Attributes(), attribute.String("http.route", "/v1/delivery/{city}/{vehicleType}"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("http.response.status_code", 200))
}

func TestTracing_PropagatesContext(t *testing.T) {
	sr, cleanup := setupTestTracer()
	defer cleanup()

	const parent = "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"

	handler := middleware.Tracing("test-service")(status(http.StatusOK))
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("traceparent", parent)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", spans[0].SpanContext().TraceID().String())
	assert.Equal(t, "b7ad6b7169203331", spans[0].Parent().SpanID().String())
}

func TestTracing_ErrorStatus(t *testing.T) {
	sr, cleanup := setupTestTracer()
	defer cleanup()

	tests := []struct {
		code int
		want codes.Code
	}{
		{http.StatusNotFound, codes.Unset},
		{http.StatusInternalServerError, codes.Error},
	}

	for _, tt := range tests {
		handler := middleware.Tracing("test-service")(status(tt.code))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", http.NoBody))
	}

	spans := sr.Ended()
	require.Len(t, spans, len(tests))
	for i, tt := range tests {
		assert.Equal(t, tt.want, spans[i].Status().Code)
	}
}

func TestTracing_IncludesRequestID(t *testing.T) {
	sr, cleanup := setupTestTracer()
	defer cleanup()

	handler := middleware.RequestID(middleware.Tracing("test-service")(status(http.StatusOK)))
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody).WithContext(context.Background())
	req.Header.Set("X-Request-Id", "req_abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Attributes(), attribute.String("request.id", "req_abc"))
}
