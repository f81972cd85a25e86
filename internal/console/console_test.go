package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/townyadvanced/townylog/internal/layout"
	"github.com/townyadvanced/townylog/internal/sink"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		version string
		want    Kind
	}{
		{"git-Paper-196 (MC: 1.20.4)", Rich},
		{"Paper 1.21", Rich},
		{"git-Spigot-a1b2c3 (MC: 1.20.4)", Plain},
		{"CraftBukkit", Plain},
		{"paper-lowercase", Plain},
		{"", Plain},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			if got := Detect(tt.version); got != tt.want {
				t.Errorf("Detect(%q) = %v, want %v", tt.version, got, tt.want)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	if Plain.String() != "plain" || Rich.String() != "rich" {
		t.Errorf("String() = %q/%q, want plain/rich", Plain, Rich)
	}
}

func TestNewSink(t *testing.T) {
	rec := layout.Record{
		Time:     time.Date(2026, time.October, 17, 8, 0, 0, 0, time.UTC),
		Severity: layout.SeverityWarn,
		Channel:  "main",
		Message:  "§cTown upkeep failed",
	}

	t.Run("plain uses standard layout", func(t *testing.T) {
		var buf bytes.Buffer
		s := NewSink(Plain, &buf, Options{Layout: layout.NewStandard(layout.WithLocation(time.UTC))})
		if _, ok := s.(*sink.Console); !ok {
			t.Fatalf("NewSink(Plain) = %T, want *sink.Console", s)
		}
		_ = s.Start()
		if err := s.Write(rec); err != nil {
			t.Fatal(err)
		}
		want := "2026-10-17 08:00:00.000 WARN Town upkeep failed\n"
		if buf.String() != want {
			t.Errorf("output = %q, want %q", buf.String(), want)
		}
	})

	t.Run("rich uses message layout", func(t *testing.T) {
		var buf bytes.Buffer
		s := NewSink(Rich, &buf, Options{ForceColor: true})
		if _, ok := s.(*sink.RichConsole); !ok {
			t.Fatalf("NewSink(Rich) = %T, want *sink.RichConsole", s)
		}
		_ = s.Start()
		if err := s.Write(rec); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(buf.String(), "WARN") {
			t.Errorf("rich console should not add severity, got %q", buf.String())
		}
		if !strings.Contains(buf.String(), "\x1b[") {
			t.Errorf("forced colour output %q has no ANSI escape", buf.String())
		}
	})

	if s := NewSink(Plain, &bytes.Buffer{}, Options{}); s.Name() != SinkName {
		t.Errorf("Name() = %q, want %q", s.Name(), SinkName)
	}
}
