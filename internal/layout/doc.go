// Package layout renders log records to text.
//
// A Layout is a pure function from a Record to the bytes a sink writes.
// Layouts are immutable and may be shared by any number of sinks.
//
// Three layouts are provided:
//
//	Standard     2026-10-17 12:00:00.000 INFO message     (main, debug, plain console)
//	CSV          17 Oct 2026 12:00:00,message             (money audit trail)
//	MessageOnly  message                                  (rich console)
//
// The CSV layout emits the timestamp followed by a comma so that the
// timestamp occupies its own CSV column. The message is expected to be
// already comma-joined by the caller.
package layout
