package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// swapHandler forwards to an output handler that can be replaced after
// loggers have been handed out. Attributes and groups added through the
// logger are kept and re-applied to the current output.
type swapHandler struct {
	target *atomic.Pointer[slog.Handler]
	derive []func(slog.Handler) slog.Handler
}

func newSwapHandler(h slog.Handler) *swapHandler {
	s := &swapHandler{target: new(atomic.Pointer[slog.Handler])}
	s.swap(h)
	return s
}

// swap replaces the output for this handler and every handler derived from it.
func (s *swapHandler) swap(h slog.Handler) {
	s.target.Store(&h)
}

func (s *swapHandler) output() slog.Handler {
	h := *s.target.Load()
	for _, fn := range s.derive {
		h = fn(h)
	}
	return h
}

func (s *swapHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*s.target.Load()).Enabled(ctx, level)
}

func (s *swapHandler) Handle(ctx context.Context, r slog.Record) error {
	return s.output().Handle(ctx, r)
}

func (s *swapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return s
	}
	return s.with(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (s *swapHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	return s.with(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (s *swapHandler) with(fn func(slog.Handler) slog.Handler) *swapHandler {
	derive := make([]func(slog.Handler) slog.Handler, len(s.derive), len(s.derive)+1)
	copy(derive, s.derive)
	return &swapHandler{target: s.target, derive: append(derive, fn)}
}
