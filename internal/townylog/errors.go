package townylog

import "errors"

// Sentinel errors for facade operations.
var (
	// ErrSinkInit is returned when a main or debug sink cannot be started.
	ErrSinkInit = errors.New("townylog: sink initialisation failed")

	// ErrMoneyAuditUnavailable is returned when the money audit sink cannot
	// be started. Startup must abort: running without it loses audit data.
	ErrMoneyAuditUnavailable = errors.New("townylog: money audit unavailable")

	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("townylog: already initialised")

	// ErrNotInitialized is returned by administrative calls before Initialize.
	ErrNotInitialized = errors.New("townylog: not initialised")

	// ErrClosed is returned by administrative calls after Close.
	ErrClosed = errors.New("townylog: closed")
)
