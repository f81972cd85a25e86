package layout

import (
	"log/slog"
	"testing"
	"time"
)

var fixedTime = time.Date(2026, time.October, 17, 9, 5, 3, 250_000_000, time.UTC)

func TestStandard_Format(t *testing.T) {
	l := NewStandard(WithLocation(time.UTC))

	got := string(l.Format(Record{
		Time:     fixedTime,
		Severity: SeverityInfo,
		Channel:  "main",
		Message:  "Town of X created",
	}))

	want := "2026-10-17 09:05:03.250 INFO Town of X created\n"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestCSV_Format(t *testing.T) {
	l := NewCSV(WithLocation(time.UTC))

	got := string(l.Format(Record{
		Time:     fixedTime,
		Severity: SeverityInfo,
		Channel:  "money",
		Message:  "Unknown Reason,[Server] ,50.0,[Town] X",
	}))

	want := "17 Oct 2026 09:05:03,Unknown Reason,[Server] ,50.0,[Town] X\n"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestMessageOnly_Format(t *testing.T) {
	got := string(MessageOnly{}.Format(Record{Time: fixedTime, Message: "§ahello"}))
	if got != "§ahello\n" {
		t.Errorf("Format() = %q, want %q", got, "§ahello\n")
	}
}

func TestWithLocation_Nil(t *testing.T) {
	l := NewStandard(WithLocation(nil))
	if l.loc != time.Local {
		t.Errorf("nil location should keep time.Local, got %v", l.loc)
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input   string
		want    Severity
		wantErr bool
	}{
		{input: "all", want: SeverityAll},
		{input: "TRACE", want: SeverityTrace},
		{input: "debug", want: SeverityDebug},
		{input: " Info ", want: SeverityInfo},
		{input: "warning", want: SeverityWarn},
		{input: "warn", want: SeverityWarn},
		{input: "error", want: SeverityError},
		{input: "off", want: SeverityOff},
		{input: "verbose", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSeverity(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSeverity(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSeverity(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSeverity_Enabled(t *testing.T) {
	tests := []struct {
		name string
		sev  Severity
		min  Severity
		want bool
	}{
		{"all accepts trace", SeverityTrace, SeverityAll, true},
		{"info passes info", SeverityInfo, SeverityInfo, true},
		{"debug below info", SeverityDebug, SeverityInfo, false},
		{"error above warn", SeverityError, SeverityWarn, true},
		{"off rejects error", SeverityError, SeverityOff, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sev.Enabled(tt.min); got != tt.want {
				t.Errorf("%v.Enabled(%v) = %v, want %v", tt.sev, tt.min, got, tt.want)
			}
		})
	}
}

func TestSeverity_String(t *testing.T) {
	if got := SeverityWarn.String(); got != "WARN" {
		t.Errorf("String() = %q, want WARN", got)
	}
	if got := Severity(42).String(); got != "SEVERITY(42)" {
		t.Errorf("String() = %q, want SEVERITY(42)", got)
	}
}

func TestFromSlog(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  Severity
	}{
		{slog.LevelDebug - 4, SeverityTrace},
		{slog.LevelDebug, SeverityDebug},
		{slog.LevelInfo, SeverityInfo},
		{slog.LevelInfo + 2, SeverityInfo},
		{slog.LevelWarn, SeverityWarn},
		{slog.LevelError, SeverityError},
		{slog.LevelError + 4, SeverityError},
	}

	for _, tt := range tests {
		if got := FromSlog(tt.level); got != tt.want {
			t.Errorf("FromSlog(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
