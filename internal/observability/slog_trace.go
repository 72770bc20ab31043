package observability

import (
	"context"
	"log/slog"

	"github.com/geocoder89/bugzapp/internal/identity"
	"go.opentelemetry.io/otel/trace"
)

// TraceHandler decorates records with the active span and, when present,
// the request id and caller id carried on the context.
type TraceHandler struct {
	next slog.Handler
}

func NewTraceHandler(next slog.Handler) *TraceHandler {
	return &TraceHandler{next: next}
}

func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx == nil {
		return h.next.Handle(ctx, r)
	}

	sc := trace.SpanFromContext(ctx).SpanContext()

	if sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	if reqID, ok := identity.RequestIDFrom(ctx); ok {
		r.AddAttrs(slog.String("request_id", reqID))
	}

	if who, ok := identity.From(ctx); ok {
		r.AddAttrs(slog.String("user_id", who.ID))
	}

	return h.next.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{next: h.next.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{next: h.next.WithGroup(name)}
}
