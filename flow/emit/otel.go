package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each node_start/node_end pair into an OpenTelemetry
// span, keyed by step name so concurrent nodes produce independent spans.
type OTelEmitter struct {
	tracer trace.Tracer

	mu    chan struct{} // binary semaphore guarding spans
	spans map[string]trace.Span
}

// NewOTelEmitter returns an OTelEmitter using tracer to create spans.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	mu := make(chan struct{}, 1)
	mu <- struct{}{}
	return &OTelEmitter{tracer: tracer, mu: mu, spans: make(map[string]trace.Span)}
}

func (o *OTelEmitter) Emit(event Event) {
	switch event.Msg {
	case "node_start":
		_, span := o.tracer.Start(context.Background(), event.StepName,
			trace.WithAttributes(attribute.String("run_id", event.RunID)))
		o.putSpan(event.StepName, span)
	case "node_end":
		span, ok := o.takeSpan(event.StepName)
		if !ok {
			return
		}
		for k, v := range event.Meta {
			span.SetAttributes(attribute.String(k, toAttrString(v)))
		}
		if errVal, ok := event.Meta["error"]; ok {
			span.SetStatus(codes.Error, toAttrString(errVal))
		}
		span.End()
	}
}

func (o *OTelEmitter) putSpan(key string, span trace.Span) {
	<-o.mu
	o.spans[key] = span
	o.mu <- struct{}{}
}

func (o *OTelEmitter) takeSpan(key string) (trace.Span, bool) {
	<-o.mu
	span, ok := o.spans[key]
	delete(o.spans, key)
	o.mu <- struct{}{}
	return span, ok
}

func (o *OTelEmitter) Flush(context.Context) error { return nil }

func toAttrString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
