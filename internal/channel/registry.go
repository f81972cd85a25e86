package channel

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/townyadvanced/townylog/internal/layout"
	"github.com/townyadvanced/townylog/internal/sink"
)

// Sentinel errors for registry operations.
var (
	// ErrClosed is returned by mutations after Close.
	ErrClosed = errors.New("channel: registry closed")

	// ErrInvalidName is returned for an empty channel name.
	ErrInvalidName = errors.New("channel: invalid name")

	// ErrNoSinks is returned when a channel would have no sinks.
	ErrNoSinks = errors.New("channel: at least one sink required")

	// ErrNotAcquired is returned when releasing a sink with no references.
	ErrNotAcquired = errors.New("channel: sink not acquired")
)

// Option configures a Registry.
type Option func(*Registry)

// WithCommitHook registers a function called after each snapshot is
// published. It runs with the registry mutex held and must not call back
// into the registry.
func WithCommitHook(fn func(*Snapshot)) Option {
	return func(r *Registry) {
		r.onCommit = fn
	}
}

// Registry owns the routing table and the sink reference counts.
type Registry struct {
	current atomic.Pointer[Snapshot]

	mu       sync.Mutex
	pending  map[string]*Channel
	refs     map[sink.Sink]int
	deferred []sink.Sink
	version  uint64
	closed   bool
	onCommit func(*Snapshot)
}

// New creates an empty registry. Until the first Commit, Snapshot returns
// an empty table.
func New(opts ...Option) *Registry {
	r := &Registry{
		pending: make(map[string]*Channel),
		refs:    make(map[sink.Sink]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(emptySnapshot)
	return r
}

// Snapshot returns the published routing table. Safe for concurrent use.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Channel looks up a channel in the published table.
func (r *Registry) Channel(name string) (*Channel, bool) {
	return r.current.Load().Channel(name)
}

// Acquire adds a reference to s, starting it if this is the first one.
// Wrapped sinks share the reference count of their innermost sink.
func (r *Registry) Acquire(s sink.Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	return r.acquireLocked(s)
}

// Release drops a reference to s, stopping it when none remain.
func (r *Registry) Release(s sink.Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseLocked(s)
}

// RefCount returns the number of references held on s.
func (r *Registry) RefCount(s sink.Sink) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs[sink.Root(s)]
}

func (r *Registry) acquireLocked(s sink.Sink) error {
	root := sink.Root(s)
	if r.refs[root] == 0 {
		if err := root.Start(); err != nil {
			return fmt.Errorf("starting sink %s: %w", root.Name(), err)
		}
	}
	r.refs[root]++
	return nil
}

func (r *Registry) releaseLocked(s sink.Sink) error {
	root := sink.Root(s)
	n, ok := r.refs[root]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAcquired, root.Name())
	}
	if n > 1 {
		r.refs[root] = n - 1
		return nil
	}
	delete(r.refs, root)
	if err := root.Stop(); err != nil {
		return fmt.Errorf("stopping sink %s: %w", root.Name(), err)
	}
	return nil
}

// CreateChannel registers a channel in the pending table, acquiring each
// sink. An existing channel with the same name is removed first. If any
// sink fails to start, the sinks acquired so far are released and the
// pending table is left without the channel.
//
// The channel is not visible to emits until Commit.
func (r *Registry) CreateChannel(name string, minSeverity layout.Severity, sinks ...sink.Sink) (*Handle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if len(sinks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSinks, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	r.removeLocked(name)

	for i, s := range sinks {
		if err := r.acquireLocked(s); err != nil {
			for _, acquired := range sinks[:i] {
				_ = r.releaseLocked(acquired) //nolint:errcheck // best-effort rollback
			}
			return nil, fmt.Errorf("creating channel %s: %w", name, err)
		}
	}

	ch := &Channel{
		Name:        name,
		MinSeverity: minSeverity,
		Sinks:       append([]sink.Sink(nil), sinks...),
		Enabled:     true,
	}
	r.pending[name] = ch
	return &Handle{channel: ch}, nil
}

// RemoveChannel detaches a channel from the pending table. Its sinks are
// released after the next Commit. It reports whether the channel existed.
func (r *Registry) RemoveChannel(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(name)
}

func (r *Registry) removeLocked(name string) bool {
	ch, ok := r.pending[name]
	if !ok {
		return false
	}
	delete(r.pending, name)
	r.deferred = append(r.deferred, ch.Sinks...)
	return true
}

// Pending reports whether a channel is registered in the pending table.
func (r *Registry) Pending(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[name]
	return ok
}

// Commit publishes the pending table and then releases the sinks of
// removed channels. Calling Commit repeatedly is safe.
func (r *Registry) Commit() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	return r.commitLocked()
}

func (r *Registry) commitLocked() error {
	channels := make(map[string]*Channel, len(r.pending))
	for name, ch := range r.pending {
		channels[name] = ch
	}
	r.version++
	snap := &Snapshot{version: r.version, channels: channels}
	r.current.Store(snap)

	if r.onCommit != nil {
		r.onCommit(snap)
	}

	var errs []error
	for _, s := range r.deferred {
		if err := r.releaseLocked(s); err != nil {
			errs = append(errs, err)
		}
	}
	r.deferred = nil
	return errors.Join(errs...)
}

// Close removes every channel, publishes the empty table and stops all
// sinks still referenced, including those acquired directly. Close is
// idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	for name := range r.pending {
		r.removeLocked(name)
	}
	errs := []error{r.commitLocked()}

	for s := range r.refs {
		if err := s.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping sink %s: %w", s.Name(), err))
		}
		delete(r.refs, s)
	}
	r.closed = true
	return errors.Join(errs...)
}
