package townylog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/townyadvanced/townylog/internal/layout"
)

// Handler returns an slog.Handler that routes records into the named
// channel, so existing slog call sites can log to towny.log or debug.log.
func (t *Logger) Handler(channelName string) slog.Handler {
	return &channelHandler{l: t, channel: channelName}
}

type channelHandler struct {
	l       *Logger
	channel string
	attrs   []slog.Attr
	group   string
}

func (h *channelHandler) Enabled(_ context.Context, level slog.Level) bool {
	ch, ok := h.l.registry.Channel(h.channel)
	return ok && ch.Accepts(layout.FromSlog(level))
}

func (h *channelHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = h.l.now()
	}
	h.l.emit(layout.Record{
		Time:     ts,
		Severity: layout.FromSlog(r.Level),
		Channel:  h.channel,
		Message:  b.String(),
	})
	return nil
}

func (h *channelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a = slog.Group(h.group, a)
		}
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *channelHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	if h.group != "" {
		h2.group = h.group + "." + name
	} else {
		h2.group = name
	}
	return &h2
}
