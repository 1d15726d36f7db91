package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records flow engine metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordStepExecution records a step execution with its duration and
	// error status.
	RecordStepExecution(ctx context.Context, stepID string, duration time.Duration, err error)

	// RecordFlowRun records a flow run completion.
	RecordFlowRun(ctx context.Context, flowID string, success bool, duration time.Duration)

	// RecordBatchItem records one batch item's outcome.
	RecordBatchItem(ctx context.Context, stepID string, success bool)
}

type otelMetrics struct {
	stepExecutions metric.Int64Counter
	stepLatency    metric.Float64Histogram
	stepErrors     metric.Int64Counter
	flowRuns       metric.Int64Counter
	flowLatency    metric.Float64Histogram
	batchItems     metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("condenser/flow")

	stepExecutions, err := meter.Int64Counter("flow.step.executions",
		metric.WithDescription("Number of step executions"),
	)
	if err != nil {
		return nil, err
	}

	stepLatency, err := meter.Float64Histogram("flow.step.latency_ms",
		metric.WithDescription("Step execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	stepErrors, err := meter.Int64Counter("flow.step.errors",
		metric.WithDescription("Number of step execution errors"),
	)
	if err != nil {
		return nil, err
	}

	flowRuns, err := meter.Int64Counter("flow.run.total",
		metric.WithDescription("Number of flow runs"),
	)
	if err != nil {
		return nil, err
	}

	flowLatency, err := meter.Float64Histogram("flow.run.latency_ms",
		metric.WithDescription("Flow run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	batchItems, err := meter.Int64Counter("flow.batch.items",
		metric.WithDescription("Number of batch items processed"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		stepExecutions: stepExecutions,
		stepLatency:    stepLatency,
		stepErrors:     stepErrors,
		flowRuns:       flowRuns,
		flowLatency:    flowLatency,
		batchItems:     batchItems,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by OpenTelemetry.
// If metrics initialization fails, it returns a no-op recorder.
//
// The recorder uses the global OTel meter provider; configure it before
// calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordStepExecution(ctx context.Context, stepID string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("step_id", stepID),
	}
	m.stepExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.stepLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.stepErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *otelMetrics) RecordFlowRun(ctx context.Context, flowID string, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("flow_id", flowID),
		attribute.Bool("success", success),
	}
	m.flowRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.flowLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

func (m *otelMetrics) RecordBatchItem(ctx context.Context, stepID string, success bool) {
	m.batchItems.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step_id", stepID),
		attribute.Bool("success", success),
	))
}
