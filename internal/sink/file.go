package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/townyadvanced/townylog/internal/layout"
)

// File permission constants.
const (
	// logDirPermissions is the permission mode for the log directory.
	logDirPermissions = 0750

	// logFilePermissions is the permission mode for log files.
	logFilePermissions = 0640
)

// File writes records to a file on disk.
//
// Writes are unbuffered: each record is written with a single write call
// and synced before Write returns, so a record that was logged survives a
// crash immediately afterwards. This trades throughput for the audit trail.
//
// The append flag is honoured only on the first Start. A sink that is
// stopped and started again within the same process always appends, so
// re-enabling a channel never wipes what it wrote earlier in the session.
type File struct {
	name   string
	path   string
	layout layout.Layout
	append bool

	mu     sync.Mutex
	file   *os.File
	opened bool
}

// NewFile creates a file sink. The file is not opened until Start.
//
// Parameters:
//   - name: Sink name for status output (e.g., "towny.log")
//   - path: Target file path; parent directories are created on Start
//   - l: Layout used to render records
//   - appendToLog: Keep existing content (true) or truncate (false) on first open
func NewFile(name, path string, l layout.Layout, appendToLog bool) *File {
	return &File{
		name:   name,
		path:   path,
		layout: l,
		append: appendToLog,
	}
}

// Name implements Sink.
func (f *File) Name() string { return f.name }

// Path returns the target file path.
func (f *File) Path() string { return f.path }

// Start opens the file exclusively for this sink.
func (f *File) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(f.path), logDirPermissions); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOpenFailed, f.path, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if !f.append && !f.opened {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(f.path, flags, logFilePermissions)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOpenFailed, f.path, err)
	}

	f.file = file
	f.opened = true
	return nil
}

// Write renders rec and writes it durably.
func (f *File) Write(rec layout.Record) error {
	data := f.layout.Format(rec)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return ErrStopped
	}

	if _, err := f.file.Write(data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, f.name, err)
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("%w: %s: sync: %w", ErrWriteFailed, f.name, err)
	}
	return nil
}

// Stop syncs and closes the file.
func (f *File) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}

	syncErr := f.file.Sync()
	closeErr := f.file.Close()
	f.file = nil

	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", f.path, closeErr)
	}
	if syncErr != nil {
		return fmt.Errorf("syncing %s: %w", f.path, syncErr)
	}
	return nil
}

// Started reports whether the file is currently open.
func (f *File) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file != nil
}
