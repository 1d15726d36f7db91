package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// collectMetricNames flushes the reader and returns the recorded metric
// names.
func collectMetricNames(t *testing.T, reader *sdkmetric.ManualReader) map[string]bool {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	return names
}

func TestMetricsRecorder_RecordsInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	rec := NewMetricsRecorder()
	ctx := context.Background()

	rec.RecordStepExecution(ctx, "summarize", 12*time.Millisecond, nil)
	rec.RecordStepExecution(ctx, "summarize", 15*time.Millisecond, errors.New("boom"))
	rec.RecordFlowRun(ctx, "summary", true, 40*time.Millisecond)
	rec.RecordBatchItem(ctx, "summarize", true)

	names := collectMetricNames(t, reader)
	assert.True(t, names["flow.step.executions"])
	assert.True(t, names["flow.step.latency_ms"])
	assert.True(t, names["flow.step.errors"])
	assert.True(t, names["flow.run.total"])
	assert.True(t, names["flow.run.latency_ms"])
	assert.True(t, names["flow.batch.items"])
}
