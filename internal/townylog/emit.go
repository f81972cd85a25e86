package townylog

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/townyadvanced/townylog/internal/layout"
	"github.com/townyadvanced/townylog/internal/money"
	"github.com/townyadvanced/townylog/internal/sink"
)

// Emitter writes records to one channel.
type Emitter struct {
	l       *Logger
	channel string
}

// Main returns the emitter for the main channel.
func (t *Logger) Main() *Emitter { return t.main }

// Debug returns the emitter for the debug channel. Records are dropped
// while debug is disabled.
func (t *Logger) Debug() *Emitter { return t.debug }

// Channel returns the channel name.
func (e *Emitter) Channel() string { return e.channel }

// Enabled reports whether a record of the given severity would be routed.
func (e *Emitter) Enabled(sev layout.Severity) bool {
	ch, ok := e.l.registry.Channel(e.channel)
	return ok && ch.Accepts(sev)
}

// Log emits msg at sev. Args are key-value pairs in log/slog form and are
// appended to the message as key=value.
func (e *Emitter) Log(sev layout.Severity, msg string, args ...any) {
	rec := layout.Record{
		Time:     e.l.now(),
		Severity: sev,
		Channel:  e.channel,
		Message:  appendArgs(msg, args),
	}
	e.l.emit(rec)
}

// Trace emits msg at TRACE.
func (e *Emitter) Trace(msg string, args ...any) { e.Log(layout.SeverityTrace, msg, args...) }

// Debug emits msg at DEBUG.
func (e *Emitter) Debug(msg string, args ...any) { e.Log(layout.SeverityDebug, msg, args...) }

// Info emits msg at INFO.
func (e *Emitter) Info(msg string, args ...any) { e.Log(layout.SeverityInfo, msg, args...) }

// Warn emits msg at WARN.
func (e *Emitter) Warn(msg string, args ...any) { e.Log(layout.SeverityWarn, msg, args...) }

// Error emits msg at ERROR.
func (e *Emitter) Error(msg string, args ...any) { e.Log(layout.SeverityError, msg, args...) }

// appendArgs renders slog-style key-value pairs after msg.
func appendArgs(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	var r slog.Record
	r.Add(args...)

	var b strings.Builder
	b.WriteString(msg)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, "", a)
		return true
	})
	return b.String()
}

// writeAttr appends " key=value", flattening groups into dotted keys.
func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key == "" {
			key = prefix
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(a.Value.String())
}

// LogMoneyTransaction records a transfer on the money channel. A nil party
// is the server treasury; an empty reason is recorded as "Unknown Reason".
//
// It never fails the caller: a Logger that is not ready reports the
// transaction to the diagnostic logger, and sink failures go to the main
// channel.
func (t *Logger) LogMoneyTransaction(source money.Party, amount float64, destination money.Party, reason string) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("money transaction logging panicked", "panic", r)
		}
	}()

	txn := money.NewTransaction(source, amount, destination, reason)
	txn.Time = t.now()

	rec := layout.Record{
		Time:     txn.Time,
		Severity: layout.SeverityInfo,
		Channel:  ChannelMoney,
		Message:  txn.Message(),
		Fields:   txn,
	}

	if t.metrics != nil {
		t.metrics.MoneyTransactions.Inc()
	}
	if !t.emit(rec) {
		t.log.Warn("money transaction not recorded: audit channel unavailable",
			"transaction", txn.Message(),
		)
	}
}

// emit routes rec through the published table. It reports whether the
// channel was published.
func (t *Logger) emit(rec layout.Record) bool {
	ch, ok := t.registry.Channel(rec.Channel)
	if !ok {
		if t.metrics != nil {
			t.metrics.RecordsDropped.WithLabelValues(rec.Channel).Inc()
		}
		return false
	}
	if !ch.Accepts(rec.Severity) {
		return true
	}

	ch.Dispatch(rec, func(s sink.Sink, err error) {
		t.observe(rec, s, err)
	})
	return true
}

// observe counts a write outcome and reports failures.
func (t *Logger) observe(rec layout.Record, s sink.Sink, err error) {
	if errors.Is(err, sink.ErrStopped) {
		// The sink was released by a commit that raced this emit.
		if t.metrics != nil {
			t.metrics.RecordsDropped.WithLabelValues(rec.Channel).Inc()
		}
		return
	}
	if t.metrics != nil {
		t.metrics.ObserveWrite(rec.Channel, s.Name(), err)
	}
	if err != nil {
		t.reportFailure(rec, s, err)
	}
}

// reportFailure records a write failure once on the fallback targets.
// Failures on main are only sent to the diagnostic logger, so a broken
// main sink cannot recurse.
func (t *Logger) reportFailure(rec layout.Record, s sink.Sink, err error) {
	t.log.Error("log sink write failed",
		"channel", rec.Channel,
		"sink", s.Name(),
		"error", err,
	)
	if rec.Channel == ChannelMain {
		return
	}
	t.emit(layout.Record{
		Time:     t.now(),
		Severity: layout.SeverityWarn,
		Channel:  ChannelMain,
		Message:  fmt.Sprintf("Failed to write %s record to %s: %v", rec.Channel, s.Name(), err),
	})
}
