package townylog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/townyadvanced/townylog/internal/channel"
	"github.com/townyadvanced/townylog/internal/console"
	"github.com/townyadvanced/townylog/internal/infrastructure/config"
	"github.com/townyadvanced/townylog/internal/infrastructure/logging"
	"github.com/townyadvanced/townylog/internal/infrastructure/metrics"
	"github.com/townyadvanced/townylog/internal/layout"
	"github.com/townyadvanced/townylog/internal/sink"
)

// Channel names.
const (
	ChannelMain  = "main"
	ChannelMoney = "money"
	ChannelDebug = "debug"
)

// File names under the log directory.
const (
	MainFile  = "towny.log"
	MoneyFile = "money.csv"
	DebugFile = "debug.log"
)

// mirrorThreshold is the minimum severity copied to the console and the
// host log.
const mirrorThreshold = layout.SeverityInfo

// Settings are the values read once when the sinks are built.
type Settings struct {
	// LogDir holds towny.log, money.csv and debug.log.
	LogDir string

	// AppendToLog keeps existing file content instead of truncating.
	AppendToLog bool

	// HostVersion selects the console style.
	HostVersion string

	// HostLogFile, if set, receives INFO and above from main and debug.
	HostLogFile string

	// ForceColor enables ANSI output on the rich console.
	ForceColor bool

	// Location sets the timezone of file timestamps. Nil means local time.
	Location *time.Location
}

// SettingsFrom extracts the logging settings from the configuration.
func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		LogDir:      cfg.Host.LogDir(),
		AppendToLog: cfg.Logging.AppendToLog,
		HostVersion: cfg.Host.Version,
		HostLogFile: cfg.Host.LogFile,
		ForceColor:  cfg.Logging.Console.ForceColor,
	}
}

// Option configures a Logger.
type Option func(*Logger)

// WithLogger sets the diagnostic logger used for lifecycle messages and
// write failure reports.
func WithLogger(l *logging.Logger) Option {
	return func(t *Logger) {
		if l != nil {
			t.log = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Logger) {
		t.metrics = m
	}
}

// WithConsole sets the host console writer. Defaults to os.Stdout.
func WithConsole(w io.Writer) Option {
	return func(t *Logger) {
		if w != nil {
			t.console = w
		}
	}
}

// WithSinks attaches additional sinks to a channel, after its file sink.
// Sinks given for the debug channel are attached whenever debug is enabled.
func WithSinks(channelName string, sinks ...sink.Sink) Option {
	return func(t *Logger) {
		t.extras[channelName] = append(t.extras[channelName], sinks...)
	}
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Logger) {
		if now != nil {
			t.now = now
		}
	}
}

type state int

const (
	stateUninitialized state = iota
	stateReady
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateReady:
		return "ready"
	case stateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// Logger is the process-scoped logging subsystem.
//
// Construct it once at process start with New, call Initialize, and tear
// it down with Close at shutdown.
type Logger struct {
	settings Settings
	log      *logging.Logger
	metrics  *metrics.Metrics
	console  io.Writer
	extras   map[string][]sink.Sink
	now      func() time.Time
	registry *channel.Registry

	main  *Emitter
	debug *Emitter

	mu          sync.Mutex
	state       state
	debugOn     bool
	consoleKind console.Kind
	debugSinks  []sink.Sink
	owned       []sink.Sink
}

// New creates an uninitialised Logger. Records emitted before Initialize
// are dropped.
func New(settings Settings, opts ...Option) *Logger {
	t := &Logger{
		settings: settings,
		log:      logging.Discard(),
		console:  os.Stdout,
		extras:   make(map[string][]sink.Sink),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.registry = channel.New(channel.WithCommitHook(func(snap *channel.Snapshot) {
		if t.metrics != nil {
			t.metrics.ObserveCommit(snap.Len())
		}
	}))
	t.main = &Emitter{l: t, channel: ChannelMain}
	t.debug = &Emitter{l: t, channel: ChannelDebug}
	return t
}

// Initialize builds the main, money and debug sinks, registers main and
// money, and commits. debug.log is created here even when debug starts
// disabled, and held open for the life of the Logger so toggling debug
// never truncates or reopens it. It only receives records while the debug
// channel is enabled.
//
// A money sink failure returns ErrMoneyAuditUnavailable; any other sink
// failure returns ErrSinkInit. On failure nothing stays registered or open
// and Initialize may be retried. Calling Initialize on a ready Logger
// returns ErrAlreadyInitialized and leaves the routing table untouched.
func (t *Logger) Initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case stateReady:
		return ErrAlreadyInitialized
	case stateClosed:
		return ErrClosed
	}

	s := t.settings
	loc := layout.WithLocation(s.Location)
	standard := layout.NewStandard(loc)

	mainFile := sink.NewFile(MainFile, filepath.Join(s.LogDir, MainFile), standard, s.AppendToLog)
	moneyFile := sink.NewFile(MoneyFile, filepath.Join(s.LogDir, MoneyFile), layout.NewCSV(loc), s.AppendToLog)
	debugFile := sink.NewFile(DebugFile, filepath.Join(s.LogDir, DebugFile), standard, s.AppendToLog)

	t.consoleKind = console.Detect(s.HostVersion)
	consoleSink := console.NewSink(t.consoleKind, t.console, console.Options{
		ForceColor: s.ForceColor,
		Layout:     standard,
	})

	mirrors := []sink.Sink{sink.Threshold(consoleSink, mirrorThreshold)}
	if s.HostLogFile != "" {
		hostLog := sink.NewFile(filepath.Base(s.HostLogFile), s.HostLogFile, standard, true)
		mirrors = append(mirrors, sink.Threshold(hostLog, mirrorThreshold))
	}

	moneySinks := append([]sink.Sink{moneyFile}, t.extras[ChannelMoney]...)
	if _, err := t.registry.CreateChannel(ChannelMoney, layout.SeverityAll, moneySinks...); err != nil {
		return fmt.Errorf("%w: %w", ErrMoneyAuditUnavailable, err)
	}

	mainSinks := append([]sink.Sink{mainFile}, mirrors...)
	mainSinks = append(mainSinks, t.extras[ChannelMain]...)
	if _, err := t.registry.CreateChannel(ChannelMain, layout.SeverityAll, mainSinks...); err != nil {
		t.rollback()
		return fmt.Errorf("%w: %w", ErrSinkInit, err)
	}

	if err := t.registry.Acquire(debugFile); err != nil {
		t.rollback()
		return fmt.Errorf("%w: %w", ErrSinkInit, err)
	}
	t.owned = []sink.Sink{debugFile}

	debugSinks := append([]sink.Sink{debugFile}, mirrors...)
	t.debugSinks = append(debugSinks, t.extras[ChannelDebug]...)

	if err := t.registry.Commit(); err != nil {
		t.log.Warn("releasing replaced sinks", "error", err)
	}

	t.state = stateReady
	t.log.Info("log channels initialised",
		"log_dir", s.LogDir,
		"append", s.AppendToLog,
		"console", t.consoleKind.String(),
	)
	return nil
}

// rollback unregisters everything created by a failed Initialize.
func (t *Logger) rollback() {
	t.registry.RemoveChannel(ChannelMoney)
	t.registry.RemoveChannel(ChannelMain)
	for _, s := range t.owned {
		_ = t.registry.Release(s) //nolint:errcheck // best-effort rollback
	}
	t.owned = nil
	if err := t.registry.Commit(); err != nil {
		t.log.Warn("rolling back log channels", "error", err)
	}
}

// checkReady returns the error for administrative calls outside Ready.
func (t *Logger) checkReady() error {
	switch t.state {
	case stateUninitialized:
		return ErrNotInitialized
	case stateClosed:
		return ErrClosed
	}
	return nil
}

// EnableDebugChannel registers the debug channel and commits. It is a
// no-op when debug is already enabled.
func (t *Logger) EnableDebugChannel() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkReady(); err != nil {
		return err
	}
	if t.debugOn {
		return nil
	}

	if _, err := t.registry.CreateChannel(ChannelDebug, layout.SeverityAll, t.debugSinks...); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkInit, err)
	}
	if err := t.registry.Commit(); err != nil {
		t.log.Warn("releasing replaced sinks", "error", err)
	}

	t.debugOn = true
	t.log.Info("debug channel enabled")
	return nil
}

// DisableDebugChannel deregisters the debug channel and commits. The
// debug file stays open. It is a no-op when debug is already disabled.
func (t *Logger) DisableDebugChannel() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkReady(); err != nil {
		return err
	}
	if !t.debugOn {
		return nil
	}

	t.registry.RemoveChannel(ChannelDebug)
	if err := t.registry.Commit(); err != nil {
		t.log.Warn("releasing debug sinks", "error", err)
	}

	t.debugOn = false
	t.log.Info("debug channel disabled")
	return nil
}

// SetDebug enables or disables the debug channel.
func (t *Logger) SetDebug(enabled bool) error {
	if enabled {
		return t.EnableDebugChannel()
	}
	return t.DisableDebugChannel()
}

// DebugEnabled reports whether the debug channel is registered.
func (t *Logger) DebugEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.debugOn
}

// Commit re-publishes the routing table. It is safe to call repeatedly.
func (t *Logger) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkReady(); err != nil {
		return err
	}
	return t.registry.Commit()
}

// Close unregisters every channel, commits, and flushes and closes all
// sinks. It is idempotent.
func (t *Logger) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == stateClosed {
		return nil
	}
	wasReady := t.state == stateReady

	var errs []error
	for _, s := range t.owned {
		if err := t.registry.Release(s); err != nil {
			errs = append(errs, err)
		}
	}
	t.owned = nil
	errs = append(errs, t.registry.Close())

	t.state = stateClosed
	t.debugOn = false
	if wasReady {
		t.log.Info("log channels closed")
	}
	return errors.Join(errs...)
}
