package logbuf

import (
	"context"
	"log/slog"
)

// TeeHandler is an slog.Handler that copies every record into a Ring and
// forwards it to an inner handler. The ring sees all levels; the inner
// handler keeps its own level filter.
type TeeHandler struct {
	inner  slog.Handler
	ring   *Ring
	attrs  []slog.Attr
	groups []string
}

// NewTeeHandler wraps inner so records also land in ring.
func NewTeeHandler(inner slog.Handler, ring *Ring) *TeeHandler {
	return &TeeHandler{inner: inner, ring: ring}
}

// Enabled always reports true so the ring captures every level.
func (h *TeeHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *TeeHandler) Handle(ctx context.Context, rec slog.Record) error {
	attrs := make(map[string]any)
	for _, a := range h.attrs {
		attrs[h.qualify(a.Key)] = flatten(a.Value)
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[h.qualify(a.Key)] = flatten(a.Value)
		return true
	})
	if len(attrs) == 0 {
		attrs = nil
	}

	h.ring.Write(Entry{
		Time:    rec.Time,
		Level:   rec.Level.String(),
		Message: rec.Message,
		Attrs:   attrs,
	})

	if h.inner.Enabled(ctx, rec.Level) {
		return h.inner.Handle(ctx, rec)
	}
	return nil
}

func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TeeHandler{
		inner:  h.inner.WithAttrs(attrs),
		ring:   h.ring,
		attrs:  append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
		groups: h.groups,
	}
}

func (h *TeeHandler) WithGroup(name string) slog.Handler {
	return &TeeHandler{
		inner:  h.inner.WithGroup(name),
		ring:   h.ring,
		attrs:  h.attrs,
		groups: append(h.groups[:len(h.groups):len(h.groups)], name),
	}
}

func (h *TeeHandler) qualify(key string) string {
	for i := len(h.groups) - 1; i >= 0; i-- {
		key = h.groups[i] + "." + key
	}
	return key
}

// flatten resolves slog values into JSON-safe types. Errors become strings
// so they don't marshal to {}.
func flatten(v slog.Value) any {
	v = v.Resolve()
	raw := v.Any()
	if err, ok := raw.(error); ok {
		return err.Error()
	}
	return raw
}
