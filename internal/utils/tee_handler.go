package utils

import (
	"context"
	"errors"
	"log/slog"
)

// TeeHandler fans one slog record out to several handlers, so the apply step
// can write the same stream to stderr and to its run logfile.
type TeeHandler struct {
	targets []slog.Handler
}

func NewTeeHandler(targets ...slog.Handler) *TeeHandler {
	return &TeeHandler{targets: targets}
}

// Enabled reports true if any target would accept the level.
func (t *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.targets {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every target that accepts its level. All
// targets are attempted even when one fails.
func (t *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t.targets {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	targets := make([]slog.Handler, len(t.targets))
	for i, h := range t.targets {
		targets[i] = h.WithAttrs(attrs)
	}
	return NewTeeHandler(targets...)
}

func (t *TeeHandler) WithGroup(name string) slog.Handler {
	targets := make([]slog.Handler, len(t.targets))
	for i, h := range t.targets {
		targets[i] = h.WithGroup(name)
	}
	return NewTeeHandler(targets...)
}
