// Package otel provides OpenTelemetry instrumentation for the assistant's
// tool dispatches and synthesis runs.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/petalpilot/tool"
)

// DispatchObserver records tool dispatch outcomes as OpenTelemetry metrics
// and spans.
type DispatchObserver struct {
	tracer trace.Tracer

	dispatches metric.Int64Counter
	failures   metric.Int64Counter
	latency    metric.Float64Histogram
}

// NewDispatchObserver creates an observer bound to the provided meter and
// tracer.
func NewDispatchObserver(meter metric.Meter, tracer trace.Tracer) (*DispatchObserver, error) {
	dispatches, err := meter.Int64Counter(
		"petalpilot.tool.dispatches",
		metric.WithDescription("Number of tool dispatches"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		"petalpilot.tool.failures",
		metric.WithDescription("Number of failed tool dispatches"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"petalpilot.tool.latency",
		metric.WithDescription("Tool dispatch latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchObserver{
		tracer:     tracer,
		dispatches: dispatches,
		failures:   failures,
		latency:    latency,
	}, nil
}

// ObserveDispatch records one dispatch outcome.
func (o *DispatchObserver) ObserveDispatch(d tool.Dispatch) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", d.Tool),
		attribute.Bool("success", d.Success),
	}
	if d.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", d.ErrorCode))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.dispatches.Add(ctx, 1, options)
	if !d.Success {
		o.failures.Add(ctx, 1, options)
	}
	o.latency.Record(ctx, float64(time.Duration(d.DurationMS)*time.Millisecond)/float64(time.Second), options)

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "tool.dispatch", trace.WithAttributes(attrs...))
	if d.CallID != "" {
		span.SetAttributes(attribute.String("call_id", d.CallID))
	}
	if !d.Success {
		span.SetStatus(codes.Error, d.ErrorCode)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

var _ tool.Observer = (*DispatchObserver)(nil)
