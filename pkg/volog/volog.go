// Package volog carries a zerolog.Logger through a context.Context, the same
// way reva's pkg/appctx attaches a logger to the request context: components
// never construct their own logger, they pull whatever the caller installed
// (or a disabled logger if none was installed).
package volog

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds a logger writing to w (os.Stderr if nil) with the given
// component name attached as the "pkg" field, mirroring reva's pkg/log
// per-package logger convention.
func New(component string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).With().Str("pkg", component).Timestamp().Logger()
}

// WithLogger returns a context carrying l.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// FromContext returns the logger stored in ctx, or a disabled logger if none
// was installed — callers can log unconditionally without a nil check.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
