package layout

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Severity orders log records for channel and sink filtering.
type Severity int

// Severity levels, lowest first.
//
// SeverityAll is only meaningful as a filter: a channel whose minimum is
// SeverityAll accepts every record. SeverityOff as a filter rejects all.
const (
	SeverityAll Severity = iota
	SeverityTrace
	SeverityDebug
	SeverityInfo
	SeverityWarn
	SeverityError
	SeverityOff
)

var severityNames = [...]string{
	SeverityAll:   "ALL",
	SeverityTrace: "TRACE",
	SeverityDebug: "DEBUG",
	SeverityInfo:  "INFO",
	SeverityWarn:  "WARN",
	SeverityError: "ERROR",
	SeverityOff:   "OFF",
}

// String returns the upper-case name used in rendered output.
func (s Severity) String() string {
	if s < SeverityAll || s > SeverityOff {
		return fmt.Sprintf("SEVERITY(%d)", int(s))
	}
	return severityNames[s]
}

// Enabled reports whether a record at level s passes a filter of min.
func (s Severity) Enabled(min Severity) bool {
	return s >= min && min != SeverityOff
}

// ParseSeverity converts a case-insensitive level name to a Severity.
// "warning" is accepted as an alias for WARN.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "ALL":
		return SeverityAll, nil
	case "TRACE":
		return SeverityTrace, nil
	case "DEBUG":
		return SeverityDebug, nil
	case "INFO":
		return SeverityInfo, nil
	case "WARN", "WARNING":
		return SeverityWarn, nil
	case "ERROR":
		return SeverityError, nil
	case "OFF":
		return SeverityOff, nil
	default:
		return SeverityAll, fmt.Errorf("layout: unknown severity %q", name)
	}
}

// FromSlog maps an slog level onto the nearest Severity at or below it.
func FromSlog(level slog.Level) Severity {
	switch {
	case level < slog.LevelDebug:
		return SeverityTrace
	case level < slog.LevelInfo:
		return SeverityDebug
	case level < slog.LevelWarn:
		return SeverityInfo
	case level < slog.LevelError:
		return SeverityWarn
	default:
		return SeverityError
	}
}

// Record is a single log event. It is immutable once created: sinks
// receive it by value and must not retain references into Fields
// beyond the Write call unless Fields is itself immutable.
type Record struct {
	Time     time.Time
	Severity Severity
	Channel  string
	Message  string

	// Fields carries an optional structured payload. The money channel
	// sets it to a money.Transaction so that structured sinks do not have
	// to parse Message back.
	Fields any
}

// NewRecord creates a record stamped with the current time.
func NewRecord(channel string, severity Severity, message string) Record {
	return Record{
		Time:     time.Now(),
		Severity: severity,
		Channel:  channel,
		Message:  message,
	}
}
