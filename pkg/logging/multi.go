package logging

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler fans records out to several handlers. The serve command uses
// it to mirror console output into the traffic log.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates a handler that writes to all provided handlers.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

// Enabled reports whether any handler accepts level.
func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes r to every enabled handler. A failing handler does not stop
// the others; their errors are joined.
func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.each(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	return h.each(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (h *MultiHandler) each(fn func(slog.Handler) slog.Handler) *MultiHandler {
	next := make([]slog.Handler, len(h.handlers))
	for i, s := range h.handlers {
		next[i] = fn(s)
	}
	return &MultiHandler{handlers: next}
}
