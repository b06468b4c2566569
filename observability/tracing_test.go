package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewTracer_NoEndpoint(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{})
	defer func() { _ = shutdown(context.Background()) }()

	require.NotNil(t, tracer)
	assert.Equal(t, "reportmesh", tracer.config.ServiceName)

	_, span := tracer.TraceTurn(context.Background(), "u", "r1")
	span.End()
}

func TestTracer_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := NewTracerFromProvider(tp, "test")

	ctx, turn := tracer.TraceTurn(context.Background(), "ana", "report-7")
	_, sweep := tracer.TraceSweep(ctx, "report_ana_1")
	RecordError(sweep, errors.New("bucket unavailable"))
	RecordError(sweep, nil)
	sweep.End()
	turn.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "report.sweep", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, "report.generate", spans[1].Name())
}

func TestTracer_NilIsUsable(t *testing.T) {
	var tracer *Tracer

	_, span := tracer.TraceTurn(context.Background(), "u", "s")
	assert.NotNil(t, span)
	span.End()
}
