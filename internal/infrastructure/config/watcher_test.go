package config

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	configPath := writeConfig(t, "host:\n  root_dir: /srv/towny\nlogging:\n  debug: false\n")
	initial, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	changes := make(chan [2]*Config, 1)
	w, err := NewWatcher(configPath, initial, func(prev, next *Config) {
		select {
		case changes <- [2]*Config{prev, next}:
		default:
		}
	}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher() error: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := w.Start(ctx); !errors.Is(err, ErrWatcherStarted) {
		t.Errorf("second Start() error = %v, want ErrWatcherStarted", err)
	}

	if err := os.WriteFile(configPath, []byte("host:\n  root_dir: /srv/towny\nlogging:\n  debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if c[0].Logging.Debug {
			t.Error("prev.Logging.Debug = true, want false")
		}
		if !c[1].Logging.Debug {
			t.Error("next.Logging.Debug = false, want true")
		}
		if w.Current() != c[1] {
			t.Error("Current() should return the reloaded config")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_InvalidFileKeepsCurrent(t *testing.T) {
	configPath := writeConfig(t, "host:\n  root_dir: /srv/towny\n")
	initial, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	errs := make(chan error, 1)
	w, err := NewWatcher(configPath, initial, func(_, _ *Config) {
		t.Error("handler should not run for an invalid file")
	}, 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SetOnError(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(configPath, []byte("host:\n  root_dir: \"\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected a reload error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}
	if w.Current() != initial {
		t.Error("Current() should still be the initial config")
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	configPath := writeConfig(t, "host:\n  root_dir: /srv/towny\n")
	w, err := NewWatcher(configPath, Default(), nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w.debounce != DefaultDebounce {
		t.Errorf("debounce = %v, want %v", w.debounce, DefaultDebounce)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error: %v", err)
	}
}
