package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records per-step dialog measurements through an OpenTelemetry
// meter exported on the default Prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	turnCounter   otelmetric.Int64Counter
	turnDuration  otelmetric.Float64Histogram
	stepAdvances  otelmetric.Int64Counter
}

// New always returns a usable value; if the exporter cannot be created it
// records nothing and the error is returned alongside.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	turnCounter, _ := meter.Int64Counter(
		"dealchat.turns",
		otelmetric.WithDescription("Dialog turns by step and intent"),
	)

	turnDuration, _ := meter.Float64Histogram(
		"dealchat.turn.duration",
		otelmetric.WithDescription("Engine time per turn, excluding reply generation"),
		otelmetric.WithUnit("ms"),
	)

	stepAdvances, _ := meter.Int64Counter(
		"dealchat.step.transitions",
		otelmetric.WithDescription("Step transitions by source and target step"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		turnCounter:   turnCounter,
		turnDuration:  turnDuration,
		stepAdvances:  stepAdvances,
	}, nil
}

// NewNoop returns an Observability that records nothing.
func NewNoop() *Observability {
	return &Observability{}
}

func (o *Observability) RecordTurn(ctx context.Context, step, intent string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("step", step),
		attribute.String("intent", intent),
	)
	if o.turnCounter != nil {
		o.turnCounter.Add(ctx, 1, attrs)
	}
	if o.turnDuration != nil {
		o.turnDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	}
}

func (o *Observability) RecordTransition(ctx context.Context, from, to string) {
	if o == nil || o.stepAdvances == nil || from == to {
		return
	}
	o.stepAdvances.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
