// Package console classifies the host console and builds the matching sink.
//
// Detection is a one-shot check of the host's version string. Hosts in the
// Paper family run an in-process console that understands colour markup,
// so they get the rich sink; everything else gets the plain one.
package console

import (
	"io"
	"strings"

	"github.com/townyadvanced/townylog/internal/layout"
	"github.com/townyadvanced/townylog/internal/sink"
)

// Kind is the console integration style.
type Kind int

// Console kinds.
const (
	Plain Kind = iota
	Rich
)

// SinkName is the name given to console sinks.
const SinkName = "console"

// richMarker identifies hosts with a rich console.
const richMarker = "Paper"

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Rich:
		return "rich"
	default:
		return "plain"
	}
}

// Detect classifies the host from its version string.
func Detect(hostVersion string) Kind {
	if strings.Contains(hostVersion, richMarker) {
		return Rich
	}
	return Plain
}

// Options configures the console sink.
type Options struct {
	// ForceColor enables ANSI output on the rich console even when the
	// writer is not a terminal.
	ForceColor bool

	// Layout overrides the plain console's standard layout.
	Layout layout.Layout
}

// NewSink returns the console sink for kind, writing to w.
func NewSink(kind Kind, w io.Writer, opts Options) sink.Sink {
	if kind == Rich {
		return sink.NewRichConsole(SinkName, w, sink.WithForceColor(opts.ForceColor))
	}

	l := opts.Layout
	if l == nil {
		l = layout.NewStandard()
	}
	return sink.NewConsole(SinkName, w, l)
}
