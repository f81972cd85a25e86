package layout

import "time"

// Timestamp patterns.
const (
	// StandardTimeFormat is used by the human-readable logs.
	StandardTimeFormat = "2006-01-02 15:04:05.000"

	// CSVTimeFormat matches the money.csv audit trail (dd MMM yyyy HH:mm:ss).
	CSVTimeFormat = "02 Jan 2006 15:04:05"
)

// Layout renders a record to the bytes a sink writes.
// Implementations must be safe for concurrent use and must not fail.
type Layout interface {
	Format(rec Record) []byte
}

// Option configures a layout.
type Option func(*options)

type options struct {
	loc *time.Location
}

// WithLocation renders timestamps in loc instead of the local zone.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{loc: time.Local}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Standard renders "<timestamp> <SEVERITY> <message>\n".
type Standard struct {
	loc *time.Location
}

// NewStandard creates the layout shared by the main and debug channels.
func NewStandard(opts ...Option) *Standard {
	o := buildOptions(opts)
	return &Standard{loc: o.loc}
}

// Format implements Layout.
func (l *Standard) Format(rec Record) []byte {
	sev := rec.Severity.String()
	buf := make([]byte, 0, len(StandardTimeFormat)+len(sev)+len(rec.Message)+3)
	buf = rec.Time.In(l.loc).AppendFormat(buf, StandardTimeFormat)
	buf = append(buf, ' ')
	buf = append(buf, sev...)
	buf = append(buf, ' ')
	buf = append(buf, rec.Message...)
	return append(buf, '\n')
}

// CSV renders "<timestamp>,<message>\n".
type CSV struct {
	loc *time.Location
}

// NewCSV creates the money audit layout.
func NewCSV(opts ...Option) *CSV {
	o := buildOptions(opts)
	return &CSV{loc: o.loc}
}

// Format implements Layout.
func (l *CSV) Format(rec Record) []byte {
	buf := make([]byte, 0, len(CSVTimeFormat)+len(rec.Message)+2)
	buf = rec.Time.In(l.loc).AppendFormat(buf, CSVTimeFormat)
	buf = append(buf, ',')
	buf = append(buf, rec.Message...)
	return append(buf, '\n')
}

// MessageOnly renders "<message>\n". Used by consoles that add their own
// prefix or styling.
type MessageOnly struct{}

// Format implements Layout.
func (MessageOnly) Format(rec Record) []byte {
	buf := make([]byte, 0, len(rec.Message)+1)
	buf = append(buf, rec.Message...)
	return append(buf, '\n')
}
