package channel

import (
	"sort"

	"github.com/townyadvanced/townylog/internal/layout"
	"github.com/townyadvanced/townylog/internal/sink"
)

// Channel is a named log stream with a severity filter and ordered sinks.
// A Channel is never modified after creation; reconfiguration replaces it.
type Channel struct {
	Name        string
	MinSeverity layout.Severity
	Sinks       []sink.Sink
	Enabled     bool
}

// Accepts reports whether a record of the given severity passes the filter.
func (c *Channel) Accepts(sev layout.Severity) bool {
	return c.Enabled && sev.Enabled(c.MinSeverity)
}

// Dispatch writes rec to every sink in order and reports each outcome to
// observe (which may be nil); err is nil for a successful write. A failing
// sink does not stop delivery to the others. It returns the number of
// sinks that accepted the record.
func (c *Channel) Dispatch(rec layout.Record, observe func(s sink.Sink, err error)) int {
	written := 0
	for _, s := range c.Sinks {
		err := s.Write(rec)
		if observe != nil {
			observe(s, err)
		}
		if err == nil {
			written++
		}
	}
	return written
}

// SinkNames returns the names of the channel's sinks in routing order.
func (c *Channel) SinkNames() []string {
	names := make([]string, len(c.Sinks))
	for i, s := range c.Sinks {
		names[i] = s.Name()
	}
	return names
}

// Snapshot is an immutable published routing table.
type Snapshot struct {
	version  uint64
	channels map[string]*Channel
}

// emptySnapshot is published before the first Commit.
var emptySnapshot = &Snapshot{channels: map[string]*Channel{}}

// Channel looks up a channel by name.
func (s *Snapshot) Channel(name string) (*Channel, bool) {
	c, ok := s.channels[name]
	return c, ok
}

// Names returns the channel names in sorted order.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of channels.
func (s *Snapshot) Len() int { return len(s.channels) }

// Version increments on every Commit.
func (s *Snapshot) Version() uint64 { return s.version }

// Handle identifies a channel created in the pending table.
type Handle struct {
	channel *Channel
}

// Name returns the channel name.
func (h *Handle) Name() string { return h.channel.Name }

// Channel returns the channel definition as it will be published.
func (h *Handle) Channel() *Channel { return h.channel }
