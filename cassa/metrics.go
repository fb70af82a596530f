package cassa

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("cassa")
	meter  = otel.Meter("cassa")
)

type intakeMetrics struct {
	accepted        metric.Int64Counter
	rejected        metric.Int64Counter
	failOpen        metric.Int64Counter
	sideEffectFails metric.Int64Counter
	duration        metric.Float64Histogram
}

func newIntakeMetrics() (*intakeMetrics, error) {
	accepted, err := meter.Int64Counter(
		"cassa.orders.accepted",
		metric.WithDescription("Number of orders persisted by the intake pipeline"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter(
		"cassa.orders.rejected",
		metric.WithDescription("Number of orders refused by the intake pipeline, by category"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	failOpen, err := meter.Int64Counter(
		"cassa.guard.failopen",
		metric.WithDescription("Number of guard checks skipped because storage was unreachable"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	sideEffectFails, err := meter.Int64Counter(
		"cassa.sideeffect.failures",
		metric.WithDescription("Number of failed or timed out post-persistence side effects"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"cassa.intake.duration",
		metric.WithDescription("Time spent handling an order submission"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &intakeMetrics{
		accepted:        accepted,
		rejected:        rejected,
		failOpen:        failOpen,
		sideEffectFails: sideEffectFails,
		duration:        duration,
	}, nil
}
