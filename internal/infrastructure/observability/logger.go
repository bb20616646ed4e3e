package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type requestIDKey struct{}

func InitLogger(w io.Writer, level slog.Level) {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithContext returns the default logger annotated with the request id
// carried by ctx, if any, plus attrs.
func WithContext(ctx context.Context, attrs ...any) *slog.Logger {
	logger := slog.Default()
	if id := RequestIDFromContext(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	return logger
}
