package logger

import (
	"context"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
)

func FromCtx(ctx context.Context) logger.Logger {
	return logger.FromCtx(ctx)
}

func CtxWithLogger(ctx context.Context, l logger.Logger) context.Context {
	return logger.CtxWithLogger(ctx, l)
}

// CtxWithField returns a context whose logger adds the given structured field
// to every entry.
func CtxWithField(ctx context.Context, key string, value any) context.Context {
	return belt.WithField(ctx, key, value)
}
