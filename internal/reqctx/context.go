// Package reqctx carries request and connection correlation values.
package reqctx

import (
	"context"
	"log/slog"
)

type ctxKey string

const (
	keyRID ctxKey = "rid"
	keyUID ctxKey = "uid"
)

// WithRID stores the correlation id of a request or websocket connection.
func WithRID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, keyRID, rid)
}

// RID returns correlation id if present.
func RID(ctx context.Context) string {
	v, _ := ctx.Value(keyRID).(string)
	return v
}

// WithUID stores the authenticated user id.
func WithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, keyUID, uid)
}

// UID returns the authenticated user id if present.
func UID(ctx context.Context) string {
	v, _ := ctx.Value(keyUID).(string)
	return v
}

// Logger returns log enriched with whatever correlation values ctx holds.
func Logger(ctx context.Context, log *slog.Logger) *slog.Logger {
	if rid := RID(ctx); rid != "" {
		log = log.With(slog.String("rid", rid))
	}
	if uid := UID(ctx); uid != "" {
		log = log.With(slog.String("uid", uid))
	}
	return log
}
