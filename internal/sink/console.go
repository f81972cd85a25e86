package sink

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/townyadvanced/townylog/internal/layout"
)

// formatPrefix introduces a two-character in-game formatting code.
const formatPrefix = '§'

// chatColours maps in-game colour codes to ANSI palette indices.
var chatColours = map[rune]string{
	'0': "0", '1': "4", '2': "2", '3': "6",
	'4': "1", '5': "5", '6': "3", '7': "7",
	'8': "8", '9': "12", 'a': "10", 'b': "14",
	'c': "9", 'd': "13", 'e': "11", 'f': "15",
}

// isFormatCode reports whether c is a recognised code after formatPrefix.
func isFormatCode(c rune) bool {
	if _, ok := chatColours[c]; ok {
		return true
	}
	switch c {
	case 'k', 'l', 'm', 'n', 'o', 'r':
		return true
	}
	return false
}

// StripCodes removes in-game formatting codes. Unrecognised codes are
// left as literal text.
func StripCodes(s string) string {
	if !strings.ContainsRune(s, formatPrefix) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == formatPrefix && i+1 < len(runes) && isFormatCode(toLower(runes[i+1])) {
			i++
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// Console writes records to a host-owned writer with formatting codes
// stripped. Stop never closes the writer.
type Console struct {
	name   string
	w      io.Writer
	layout layout.Layout

	mu      sync.Mutex
	started bool
}

// NewConsole creates a plain console sink.
func NewConsole(name string, w io.Writer, l layout.Layout) *Console {
	return &Console{name: name, w: w, layout: l}
}

// Name implements Sink.
func (c *Console) Name() string { return c.name }

// Start implements Sink.
func (c *Console) Start() error {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	return nil
}

// Write implements Sink.
func (c *Console) Write(rec layout.Record) error {
	line := StripCodes(string(c.layout.Format(rec)))

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return ErrStopped
	}
	if _, err := io.WriteString(c.w, line); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, c.name, err)
	}
	return nil
}

// Stop implements Sink.
func (c *Console) Stop() error {
	c.mu.Lock()
	c.started = false
	c.mu.Unlock()
	return nil
}

// RichConsole renders formatting codes as ANSI styles when the writer is
// a terminal, or when colour is forced. Otherwise it behaves like Console.
type RichConsole struct {
	name     string
	w        io.Writer
	layout   layout.Layout
	color    bool
	renderer *lipgloss.Renderer

	mu      sync.Mutex
	started bool
}

// RichOption configures a RichConsole.
type RichOption func(*RichConsole)

// WithForceColor enables ANSI output regardless of terminal detection.
func WithForceColor(force bool) RichOption {
	return func(r *RichConsole) {
		if force {
			r.color = true
		}
	}
}

// WithRichLayout overrides the default message-only layout.
func WithRichLayout(l layout.Layout) RichOption {
	return func(r *RichConsole) {
		if l != nil {
			r.layout = l
		}
	}
}

// NewRichConsole creates a colour-capable console sink.
func NewRichConsole(name string, w io.Writer, opts ...RichOption) *RichConsole {
	r := &RichConsole{
		name:   name,
		w:      w,
		layout: layout.MessageOnly{},
		color:  isTerminal(w),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.renderer = lipgloss.NewRenderer(w)
	if r.color {
		r.renderer.SetColorProfile(termenv.ANSI)
	}
	return r
}

// isTerminal reports whether w is backed by a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Name implements Sink.
func (r *RichConsole) Name() string { return r.name }

// Colored reports whether ANSI output is active.
func (r *RichConsole) Colored() bool { return r.color }

// Start implements Sink.
func (r *RichConsole) Start() error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

// Write implements Sink.
func (r *RichConsole) Write(rec layout.Record) error {
	text := string(r.layout.Format(rec))
	var line string
	if r.color {
		line = r.Translate(strings.TrimSuffix(text, "\n")) + "\n"
	} else {
		line = StripCodes(text)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return ErrStopped
	}
	if _, err := io.WriteString(r.w, line); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, r.name, err)
	}
	return nil
}

// Stop implements Sink.
func (r *RichConsole) Stop() error {
	r.mu.Lock()
	r.started = false
	r.mu.Unlock()
	return nil
}

// Translate converts formatting codes in s to ANSI styled text.
func (r *RichConsole) Translate(s string) string {
	if !strings.ContainsRune(s, formatPrefix) {
		return s
	}

	base := r.renderer.NewStyle().TabWidth(lipgloss.NoTabConversion)
	style := base
	var out, seg strings.Builder

	flush := func() {
		if seg.Len() == 0 {
			return
		}
		out.WriteString(renderLines(style, seg.String()))
		seg.Reset()
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != formatPrefix || i+1 >= len(runes) {
			seg.WriteRune(c)
			continue
		}
		code := toLower(runes[i+1])
		if !isFormatCode(code) {
			seg.WriteRune(c)
			continue
		}
		flush()
		i++

		if colour, ok := chatColours[code]; ok {
			// A colour code resets decorations.
			style = base.Foreground(lipgloss.Color(colour))
			continue
		}
		switch code {
		case 'l':
			style = style.Bold(true)
		case 'm':
			style = style.Strikethrough(true)
		case 'n':
			style = style.Underline(true)
		case 'o':
			style = style.Italic(true)
		case 'r':
			style = base
		}
	}
	flush()
	return out.String()
}

// renderLines styles each line separately so lipgloss does not pad
// multi-line segments to a common width.
func renderLines(style lipgloss.Style, text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = style.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}
