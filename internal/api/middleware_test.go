package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/cherrin1/remote-slack-server/internal/tracing"
)

func TestTraceRequests_EmitsServerSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := tracing.Tracer
	tracing.Tracer = tp.Tracer("test")
	t.Cleanup(func() { tracing.Tracer = prev })

	e := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /health", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
}
