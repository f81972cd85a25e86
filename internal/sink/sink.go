// Package sink provides the output destinations that channels route to.
//
// A Sink owns its resource (file handle, console writer, broker client
// reference) and follows a Start, Write..., Stop lifecycle. Sinks are
// shared by reference between channels; the channel registry
// reference-counts them so that a sink is started on first use and
// stopped when the last channel releases it.
//
// Thread Safety: every Sink in this package serialises its own writes, so
// concurrent callers never interleave bytes within one record.
package sink

import (
	"errors"
	"time"

	"github.com/townyadvanced/townylog/internal/layout"
	"github.com/townyadvanced/townylog/internal/money"
)

// Sentinel errors for sink operations.
var (
	// ErrStopped is returned by Write on a sink that is not started.
	ErrStopped = errors.New("sink: not started")

	// ErrOpenFailed is returned by Start when the target cannot be opened.
	ErrOpenFailed = errors.New("sink: open failed")

	// ErrWriteFailed wraps I/O errors from Write.
	ErrWriteFailed = errors.New("sink: write failed")
)

// Sink is an output destination for formatted records.
type Sink interface {
	// Name identifies the sink in status output and error messages.
	Name() string

	// Start acquires the underlying resource. Calling Start on a started
	// sink is a no-op.
	Start() error

	// Write renders and emits one record. It returns ErrStopped if the
	// sink has not been started.
	Write(rec layout.Record) error

	// Stop flushes and releases the resource. Calling Stop on a stopped
	// sink is a no-op.
	Stop() error
}

// Wrapper is implemented by sinks that decorate another sink. The
// registry uses the innermost sink as the lifecycle identity.
type Wrapper interface {
	Unwrap() Sink
}

// Root returns the innermost sink of a chain of wrappers.
func Root(s Sink) Sink {
	for {
		w, ok := s.(Wrapper)
		if !ok {
			return s
		}
		s = w.Unwrap()
	}
}

// Event is the structured form of a record used by network sinks.
type Event struct {
	Time        time.Time          `json:"time"`
	Severity    string             `json:"severity"`
	Channel     string             `json:"channel"`
	Message     string             `json:"message"`
	Transaction *money.Transaction `json:"transaction,omitempty"`
}

// NewEvent converts a record to its structured form.
func NewEvent(rec layout.Record) Event {
	ev := Event{
		Time:     rec.Time.UTC(),
		Severity: rec.Severity.String(),
		Channel:  rec.Channel,
		Message:  rec.Message,
	}
	if txn, ok := rec.Fields.(money.Transaction); ok {
		ev.Transaction = &txn
	}
	return ev
}
