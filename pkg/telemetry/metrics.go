package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce          sync.Once
	metricsInitErr       error
	taskExecutionCounter metric.Int64Counter
	taskLatencyHistogram metric.Float64Histogram
	dispatchCounter      metric.Int64Counter
	dispatchHistogram    metric.Float64Histogram
	dispatchCostCounter  metric.Float64Counter
)

// TaskMetrics captures the fields needed to record workflow task telemetry.
type TaskMetrics struct {
	CardName    string
	CardVersion int
	TaskID      string
	ToolRef     string
	Outcome     string
	Duration    time.Duration
}

// RecordTaskMetrics emits counters and histograms describing one task run.
func RecordTaskMetrics(ctx context.Context, m TaskMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("card.name", m.CardName),
		attribute.Int("card.version", m.CardVersion),
		attribute.String("task.id", m.TaskID),
		attribute.String("task.tool", m.ToolRef),
		attribute.String("task.outcome", m.Outcome),
	}

	taskExecutionCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	if m.Duration > 0 {
		taskLatencyHistogram.Record(ctx, float64(m.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}
}

// ModelDispatch captures the fields needed to record one model invocation.
type ModelDispatch struct {
	Model   string
	Outcome string
	Latency time.Duration
	Cost    float64
}

// RecordModelDispatch emits counters and histograms describing one model call.
func RecordModelDispatch(ctx context.Context, d ModelDispatch) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model.name", d.Model),
		attribute.String("model.outcome", d.Outcome),
	}

	dispatchCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	if d.Latency > 0 {
		dispatchHistogram.Record(ctx, float64(d.Latency)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}
	if d.Cost > 0 {
		dispatchCostCounter.Add(ctx, d.Cost, metric.WithAttributes(attrs...))
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("concord.workflow")

		taskExecutionCounter, metricsInitErr = meter.Int64Counter(
			"concord.task.executions_total",
			metric.WithDescription("Workflow task executions partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		taskLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"concord.task.duration_ms",
			metric.WithDescription("Observed workflow task latency"),
			metric.WithUnit("ms"),
		)
		if metricsInitErr != nil {
			return
		}

		dispatchCounter, metricsInitErr = meter.Int64Counter(
			"concord.model.dispatches_total",
			metric.WithDescription("Model invocations partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		dispatchHistogram, metricsInitErr = meter.Float64Histogram(
			"concord.model.latency_ms",
			metric.WithDescription("Observed model invocation latency"),
			metric.WithUnit("ms"),
		)
		if metricsInitErr != nil {
			return
		}

		dispatchCostCounter, metricsInitErr = meter.Float64Counter(
			"concord.model.cost_total",
			metric.WithDescription("Accumulated model invocation cost"),
			metric.WithUnit("{usd}"),
		)
	})

	return metricsInitErr
}
