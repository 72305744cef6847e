package logger

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
)

// NewDefault returns a logrus-backed logger of the given level.
func NewDefault(level Level) Logger {
	return logrus.Default().WithLevel(level)
}

// CtxWithDefault installs a logrus-backed logger of the given level both
// as the default logger and into the returned context.
func CtxWithDefault(ctx context.Context, level Level) context.Context {
	l := NewDefault(level)
	SetDefault(func() Logger {
		return l
	})
	return CtxWithLogger(ctx, l)
}
