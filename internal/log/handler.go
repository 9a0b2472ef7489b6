package log

import (
	"context"
	"log/slog"
)

// componentHandler overrides the component attribute on every record.
type componentHandler struct {
	slog.Handler
	component string
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	out.AddAttrs(slog.String(FieldComponent, h.component))
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != FieldComponent {
			out.AddAttrs(a)
		}
		return true
	})
	return h.Handler.Handle(ctx, out)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	kept := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		if a.Key != FieldComponent {
			kept = append(kept, a)
		}
	}
	return &componentHandler{Handler: h.Handler.WithAttrs(kept), component: h.component}
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{Handler: h.Handler.WithGroup(name), component: h.component}
}
