package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obslogger "github.com/smallbiznis/commission/internal/observability/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	prev := otel.GetTracerProvider()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(&correlationSpanProcessor{}),
		sdktrace.WithSpanProcessor(rec),
	)
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return rec
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestGinMiddlewareNamesSpanByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := installRecorder(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/v1/budgets/:id/recompute", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/budgets/42/recompute", nil))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP POST /v1/budgets/:id/recompute", spans[0].Name())
	budget, ok := attrValue(spans[0].Attributes(), "budget_id")
	require.True(t, ok)
	assert.Equal(t, "42", budget.AsString())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}

func TestStartStampsRunID(t *testing.T) {
	rec := installRecorder(t)

	ctx := obslogger.WithRunID(context.Background(), "run-1")
	_, span := Start(ctx, "commission/test", "recompute")
	End(span, nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	runID, ok := attrValue(spans[0].Attributes(), "run_id")
	require.True(t, ok)
	assert.Equal(t, "run-1", runID.AsString())
}

func TestSamplingRatioDefaults(t *testing.T) {
	assert.Equal(t, 1.0, samplingRatio(0))
	assert.Equal(t, 1.0, samplingRatio(2))
	assert.Equal(t, 0.25, samplingRatio(0.25))
}

func TestNewExporterRejectsUnknownProtocol(t *testing.T) {
	_, err := newExporter(context.Background(), "carrier-pigeon", "")
	require.Error(t, err)
}
