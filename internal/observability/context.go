package observability

import "context"

type contextKey int

const (
	traceIDKey contextKey = iota
	requestURLKey
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceID(ctx context.Context) string {
	value, _ := ctx.Value(traceIDKey).(string)
	return value
}

func WithRequestURL(ctx context.Context, requestURL string) context.Context {
	return context.WithValue(ctx, requestURLKey, requestURL)
}

func RequestURL(ctx context.Context) string {
	value, _ := ctx.Value(requestURLKey).(string)
	return value
}
