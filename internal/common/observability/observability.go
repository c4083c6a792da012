package observability

import (
	"context"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	ServiceName string
	// Registerer receives the otel metric collector; nil means the prometheus default registry.
	Registerer prom.Registerer
	// SpanProcessor, when set, receives every finished span.
	SpanProcessor sdktrace.SpanProcessor
}

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	submitCounter  otelmetric.Int64Counter
	submitDuration otelmetric.Float64Histogram
	draftCounter   otelmetric.Int64Counter
}

func New(opts Options) (*Observability, error) {
	promOpts := []prometheus.Option{}
	if opts.Registerer != nil {
		promOpts = append(promOpts, prometheus.WithRegisterer(opts.Registerer))
	}
	exporter, err := prometheus.New(promOpts...)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", opts.ServiceName))

	mp := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(mp)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if opts.SpanProcessor != nil {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(opts.SpanProcessor))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	meter := mp.Meter(opts.ServiceName)
	o := &Observability{
		meterProvider:  mp,
		tracerProvider: tp,
		tracer:         tp.Tracer(opts.ServiceName),
	}

	if o.submitCounter, err = meter.Int64Counter("admissions.submissions",
		otelmetric.WithDescription("Application submissions by outcome")); err != nil {
		return nil, err
	}
	if o.submitDuration, err = meter.Float64Histogram("admissions.submission.duration",
		otelmetric.WithDescription("Submission transmit duration"),
		otelmetric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if o.draftCounter, err = meter.Int64Counter("admissions.draft.saves",
		otelmetric.WithDescription("Draft saves by outcome")); err != nil {
		return nil, err
	}
	return o, nil
}

// Tracer is safe on a nil receiver and then returns a no-op tracer.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracer == nil {
		return otel.Tracer("admissions-portal")
	}
	return o.tracer
}

func (o *Observability) RecordSubmission(ctx context.Context, outcome string, d time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	o.submitCounter.Add(ctx, 1, attrs)
	o.submitDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}

func (o *Observability) RecordDraftSave(ctx context.Context, outcome string) {
	if o == nil {
		return
	}
	o.draftCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var firstErr error
	if err := o.tracerProvider.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := o.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
