package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies this instrumentation scope.
const tracerName = "github.com/verdictlabs/verdict/infrastructure/llm"

// tracedAdapter records an OpenTelemetry span around each provider call
// with provider, model, and token attributes.
type tracedAdapter struct {
	next   Adapter
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that wraps each completion attempt
// in a span named "llm.complete".
func TracingMiddleware() Middleware {
	return func(next Adapter) Adapter {
		return &tracedAdapter{
			next:   next,
			tracer: otel.Tracer(tracerName),
		}
	}
}

// Complete executes the request within a span, recording the error status
// and token usage.
func (t *tracedAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	ctx, span := t.tracer.Start(ctx, "llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", string(t.next.Provider())),
			attribute.String("llm.model", t.next.Model()),
			attribute.Int("llm.prompt.length", len(req.Prompt)),
		),
	)
	defer span.End()

	resp, err := t.next.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens.input", resp.Usage.PromptTokens),
		attribute.Int("llm.tokens.output", resp.Usage.CompletionTokens),
	)
	return resp, nil
}

// IsRetryable delegates to the wrapped adapter.
func (t *tracedAdapter) IsRetryable(err error) bool { return t.next.IsRetryable(err) }

// Provider delegates to the wrapped adapter.
func (t *tracedAdapter) Provider() Provider { return t.next.Provider() }

// Model delegates to the wrapped adapter.
func (t *tracedAdapter) Model() string { return t.next.Model() }
