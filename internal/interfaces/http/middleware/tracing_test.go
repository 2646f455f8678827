package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})
	return tp, sr
}

func tracedRouter(tp *sdktrace.TracerProvider) *gin.Engine {
	router := gin.New()
	router.Use(
		RequestID(),
		TracingWithConfig(TracingConfig{ServiceName: "krbiz-test", Enabled: true, TracerProvider: tp}),
		TracingAttributeInjector(),
		SpanErrorMarker(),
	)
	sessions := router.Group("/sessions/:session_id", SessionScope())
	sessions.GET("/orders", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"files": []string{}})
	})
	sessions.POST("/run", func(c *gin.Context) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no delivery file"})
	})
	router.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	return router
}

func attrOf(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	tp, sr := setupTestTracer(t)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: false, TracerProvider: tp}))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracingWithConfig_Enabled(t *testing.T) {
	tp, sr := setupTestTracer(t)
	router := tracedRouter(tp)

	req := httptest.NewRequest(http.MethodGet, "/sessions/abc/orders", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /sessions/:session_id/orders", span.Name())
	assert.NotEqual(t, codes.Error, span.Status().Code)

	requestID, ok := attrOf(span, "request_id")
	require.True(t, ok)
	assert.Equal(t, "req-1", requestID.AsString())

	sessionID, ok := attrOf(span, "session_id")
	require.True(t, ok)
	assert.Equal(t, "abc", sessionID.AsString())
}

func TestTracingAttributeInjector_TruncatesLongRequestIDs(t *testing.T) {
	tp, sr := setupTestTracer(t)
	router := tracedRouter(tp)

	long := make([]byte, MaxRequestIDLength+40)
	for i := range long {
		long[i] = 'a'
	}
	req := httptest.NewRequest(http.MethodGet, "/sessions/abc/orders", nil)
	req.Header.Set(RequestIDHeader, string(long))
	router.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	requestID, ok := attrOf(spans[0], "request_id")
	require.True(t, ok)
	assert.Len(t, requestID.AsString(), MaxRequestIDLength)
}

func TestSpanErrorMarker(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		status  int
		message string
	}{
		{"invalid state", http.MethodPost, "/sessions/abc/run", http.StatusUnprocessableEntity, "Invalid State"},
		{"not found", http.MethodGet, "/sessions/abc/missing", http.StatusNotFound, "Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, sr := setupTestTracer(t)
			router := tracedRouter(tp)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, tt.status, w.Code)

			spans := sr.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, codes.Error, spans[0].Status().Code)
			assert.Equal(t, tt.message, spans[0].Status().Description)
		})
	}

	t.Run("server error", func(t *testing.T) {
		tp, sr := setupTestTracer(t)
		router := tracedRouter(tp)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
		require.Equal(t, http.StatusInternalServerError, w.Code)

		spans := sr.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
	})
}
