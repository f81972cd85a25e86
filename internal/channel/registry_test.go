package channel

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/townyadvanced/townylog/internal/layout"
	"github.com/townyadvanced/townylog/internal/sink"
)

// recordingSink counts lifecycle calls and captures written messages.
type recordingSink struct {
	name     string
	startErr error
	writeErr error

	mu       sync.Mutex
	started  bool
	starts   int
	stops    int
	messages []string
}

func newRecordingSink(name string) *recordingSink {
	return &recordingSink{name: name}
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	s.starts++
	return nil
}

func (s *recordingSink) Write(rec layout.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return sink.ErrStopped
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	s.messages = append(s.messages, rec.Message)
	return nil
}

func (s *recordingSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.stops++
	return nil
}

func (s *recordingSink) isStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func TestRegistry_EmptyBeforeCommit(t *testing.T) {
	r := New()
	file := newRecordingSink("towny.log")

	if _, err := r.CreateChannel("main", layout.SeverityAll, file); err != nil {
		t.Fatalf("CreateChannel() error: %v", err)
	}
	if !file.isStarted() {
		t.Error("sink should be started on creation")
	}
	if _, ok := r.Channel("main"); ok {
		t.Error("channel visible before Commit")
	}
	if !r.Pending("main") {
		t.Error("channel should be pending")
	}

	if err := r.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	ch, ok := r.Channel("main")
	if !ok {
		t.Fatal("channel not visible after Commit")
	}
	if got := ch.SinkNames(); len(got) != 1 || got[0] != "towny.log" {
		t.Errorf("SinkNames() = %v, want [towny.log]", got)
	}
}

func TestRegistry_CreateValidation(t *testing.T) {
	r := New()

	if _, err := r.CreateChannel("  ", layout.SeverityAll, newRecordingSink("s")); !errors.Is(err, ErrInvalidName) {
		t.Errorf("empty name error = %v, want ErrInvalidName", err)
	}
	if _, err := r.CreateChannel("main", layout.SeverityAll); !errors.Is(err, ErrNoSinks) {
		t.Errorf("no sinks error = %v, want ErrNoSinks", err)
	}
}

func TestRegistry_CreateReplacesExisting(t *testing.T) {
	r := New()
	first := newRecordingSink("first")
	second := newRecordingSink("second")

	if _, err := r.CreateChannel("main", layout.SeverityAll, first); err != nil {
		t.Fatal(err)
	}
	if err := r.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateChannel("main", layout.SeverityAll, second); err != nil {
		t.Fatal(err)
	}

	// The old sink remains started until the replacement is published.
	if !first.isStarted() {
		t.Error("replaced sink stopped before Commit")
	}
	if err := r.Commit(); err != nil {
		t.Fatal(err)
	}
	if first.isStarted() {
		t.Error("replaced sink still started after Commit")
	}

	ch, _ := r.Channel("main")
	if len(ch.Sinks) != 1 || ch.Sinks[0].Name() != "second" {
		t.Errorf("Sinks = %v, want only second", ch.SinkNames())
	}
}

func TestRegistry_StartFailureRollsBack(t *testing.T) {
	r := New()
	good := newRecordingSink("good")
	bad := newRecordingSink("bad")
	bad.startErr = errors.New("permission denied")

	_, err := r.CreateChannel("main", layout.SeverityAll, good, bad)
	if err == nil {
		t.Fatal("CreateChannel() should fail when a sink cannot start")
	}
	if good.isStarted() {
		t.Error("acquired sink should be released after rollback")
	}
	if r.RefCount(good) != 0 {
		t.Errorf("RefCount(good) = %d, want 0", r.RefCount(good))
	}
	if r.Pending("main") {
		t.Error("failed channel should not be pending")
	}
}

func TestRegistry_SharedSinkRefCounting(t *testing.T) {
	r := New()
	console := newRecordingSink("console")
	mainFile := newRecordingSink("towny.log")
	debugFile := newRecordingSink("debug.log")

	// Threshold wrapper shares the console's reference count.
	if _, err := r.CreateChannel("main", layout.SeverityAll, mainFile, sink.Threshold(console, layout.SeverityInfo)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateChannel("debug", layout.SeverityAll, debugFile, console); err != nil {
		t.Fatal(err)
	}
	if err := r.Commit(); err != nil {
		t.Fatal(err)
	}
	if got := r.RefCount(console); got != 2 {
		t.Fatalf("RefCount(console) = %d, want 2", got)
	}

	if !r.RemoveChannel("debug") {
		t.Fatal("RemoveChannel() = false, want true")
	}
	if err := r.Commit(); err != nil {
		t.Fatal(err)
	}

	if !console.isStarted() {
		t.Error("shared console stopped while main still references it")
	}
	if debugFile.isStarted() {
		t.Error("debug file should stop with its last reference")
	}
	if console.starts != 1 {
		t.Errorf("console started %d times, want 1", console.starts)
	}
}

func TestRegistry_RemoveMissing(t *testing.T) {
	r := New()
	if r.RemoveChannel("debug") {
		t.Error("RemoveChannel() on missing channel = true, want false")
	}
}

func TestRegistry_RemoveDefersStopUntilCommit(t *testing.T) {
	r := New()
	file := newRecordingSink("debug.log")
	if _, err := r.CreateChannel("debug", layout.SeverityAll, file); err != nil {
		t.Fatal(err)
	}
	if err := r.Commit(); err != nil {
		t.Fatal(err)
	}
	old := r.Snapshot()

	r.RemoveChannel("debug")

	// Emits holding the old snapshot can still write.
	ch, _ := old.Channel("debug")
	if n := ch.Dispatch(layout.NewRecord("debug", layout.SeverityInfo, "in flight"), nil); n != 1 {
		t.Errorf("Dispatch() on old snapshot wrote to %d sinks, want 1", n)
	}
	if _, ok := r.Channel("debug"); !ok {
		t.Error("removal visible before Commit")
	}

	if err := r.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Channel("debug"); ok {
		t.Error("channel still published after Commit")
	}
	if file.isStarted() {
		t.Error("sink should stop after Commit")
	}
}

func TestRegistry_CommitIdempotent(t *testing.T) {
	var published atomic.Int32
	r := New(WithCommitHook(func(*Snapshot) { published.Add(1) }))
	if _, err := r.CreateChannel("main", layout.SeverityAll, newRecordingSink("s")); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := r.Commit(); err != nil {
			t.Fatalf("Commit() #%d error: %v", i, err)
		}
	}

	if got := r.Snapshot().Names(); len(got) != 1 || got[0] != "main" {
		t.Errorf("Names() = %v, want [main]", got)
	}
	if got := r.Snapshot().Version(); got != 3 {
		t.Errorf("Version() = %d, want 3", got)
	}
	if published.Load() != 3 {
		t.Errorf("commit hook called %d times, want 3", published.Load())
	}
}

func TestRegistry_AcquireRelease(t *testing.T) {
	r := New()
	s := newRecordingSink("debug.log")

	if err := r.Release(s); !errors.Is(err, ErrNotAcquired) {
		t.Errorf("Release() without Acquire error = %v, want ErrNotAcquired", err)
	}
	if err := r.Acquire(s); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateChannel("debug", layout.SeverityAll, s); err != nil {
		t.Fatal(err)
	}
	if err := r.Commit(); err != nil {
		t.Fatal(err)
	}

	r.RemoveChannel("debug")
	if err := r.Commit(); err != nil {
		t.Fatal(err)
	}
	if !s.isStarted() {
		t.Error("sink held by a direct owner must stay started")
	}

	if err := r.Release(s); err != nil {
		t.Fatal(err)
	}
	if s.isStarted() {
		t.Error("sink should stop on last release")
	}
}

func TestRegistry_Close(t *testing.T) {
	r := New()
	file := newRecordingSink("towny.log")
	held := newRecordingSink("debug.log")

	if _, err := r.CreateChannel("main", layout.SeverityAll, file); err != nil {
		t.Fatal(err)
	}
	if err := r.Acquire(held); err != nil {
		t.Fatal(err)
	}
	if err := r.Commit(); err != nil {
		t.Fatal(err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if file.isStarted() || held.isStarted() {
		t.Error("Close() should stop every sink")
	}
	if r.Snapshot().Len() != 0 {
		t.Errorf("snapshot has %d channels after Close, want 0", r.Snapshot().Len())
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if _, err := r.CreateChannel("main", layout.SeverityAll, file); !errors.Is(err, ErrClosed) {
		t.Errorf("CreateChannel() after Close error = %v, want ErrClosed", err)
	}
	if err := r.Commit(); !errors.Is(err, ErrClosed) {
		t.Errorf("Commit() after Close error = %v, want ErrClosed", err)
	}
}

func TestChannel_AcceptsAndDispatch(t *testing.T) {
	ok := newRecordingSink("ok")
	broken := newRecordingSink("broken")
	broken.writeErr = errors.New("disk full")
	_ = ok.Start()
	_ = broken.Start()

	ch := &Channel{Name: "main", MinSeverity: layout.SeverityInfo, Sinks: []sink.Sink{broken, ok}, Enabled: true}

	if ch.Accepts(layout.SeverityDebug) {
		t.Error("debug should be filtered at info")
	}
	if !ch.Accepts(layout.SeverityError) {
		t.Error("error should pass info filter")
	}

	var failed []string
	n := ch.Dispatch(layout.NewRecord("main", layout.SeverityInfo, "hello"), func(s sink.Sink, err error) {
		if err != nil {
			failed = append(failed, s.Name())
		}
	})
	if n != 1 {
		t.Errorf("Dispatch() = %d, want 1", n)
	}
	if len(failed) != 1 || failed[0] != "broken" {
		t.Errorf("failed sinks = %v, want [broken]", failed)
	}
	if ok.count() != 1 {
		t.Error("failure on one sink must not block the next")
	}
}

func TestRegistry_ConcurrentEmitsDuringToggle(t *testing.T) {
	r := New()
	mainSink := newRecordingSink("towny.log")
	debugSink := newRecordingSink("debug.log")

	if _, err := r.CreateChannel("main", layout.SeverityAll, mainSink); err != nil {
		t.Fatal(err)
	}
	if err := r.Acquire(debugSink); err != nil {
		t.Fatal(err)
	}
	if err := r.Commit(); err != nil {
		t.Fatal(err)
	}

	const writers, perWriter = 4, 200
	var wg sync.WaitGroup
	var failures atomic.Int32
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				snap := r.Snapshot()
				for _, name := range []string{"main", "debug"} {
					if ch, ok := snap.Channel(name); ok {
						ch.Dispatch(layout.NewRecord(name, layout.SeverityInfo, "x"), func(_ sink.Sink, err error) {
							if err != nil {
								failures.Add(1)
							}
						})
					}
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if _, err := r.CreateChannel("debug", layout.SeverityAll, debugSink); err != nil {
			t.Fatal(err)
		}
		if err := r.Commit(); err != nil {
			t.Fatal(err)
		}
		r.RemoveChannel("debug")
		if err := r.Commit(); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("%d writes failed during toggling", failures.Load())
	}
	if mainSink.count() != writers*perWriter {
		t.Errorf("main received %d records, want %d", mainSink.count(), writers*perWriter)
	}
}
