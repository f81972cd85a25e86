package sink

import "github.com/townyadvanced/townylog/internal/layout"

// thresholdSink drops records below a minimum severity.
type thresholdSink struct {
	inner  Sink
	minSev layout.Severity
}

// Threshold wraps s so that only records at or above minSev are written.
// Lifecycle calls pass through to s.
func Threshold(s Sink, minSev layout.Severity) Sink {
	return &thresholdSink{inner: s, minSev: minSev}
}

func (t *thresholdSink) Name() string { return t.inner.Name() }
func (t *thresholdSink) Start() error { return t.inner.Start() }
func (t *thresholdSink) Stop() error  { return t.inner.Stop() }
func (t *thresholdSink) Unwrap() Sink { return t.inner }

func (t *thresholdSink) Write(rec layout.Record) error {
	if !rec.Severity.Enabled(t.minSev) {
		return nil
	}
	return t.inner.Write(rec)
}
