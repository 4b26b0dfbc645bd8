package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestDefaultSubstitutesDiscard(t *testing.T) {
	logger := Default(nil)
	if logger == nil {
		t.Fatal("Default(nil) returned nil")
	}
	logger.Info("should be discarded")
}

func TestDefaultPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	got := Default(logger)
	got.Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected message to be logged, got %q", buf.String())
	}
}

func TestScopedAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	logger := Scoped(base, "writable", "file", "x.bp")
	logger.Info("linked")

	out := buf.String()
	for _, want := range []string{"component=writable", "file=x.bp", "linked"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

func TestScopedOnNilLogger(t *testing.T) {
	logger := Scoped(nil, "series")
	logger.Info("should not panic")
}

func TestComponentFilterHandlerFiltersByComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, filter := New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}), slog.LevelInfo)

	series := Scoped(logger, "series")
	driver := Scoped(logger, "jsonfile")

	series.Debug("below default, dropped")
	driver.Debug("below default, dropped")
	if got := buf.String(); strings.Contains(got, "dropped") {
		t.Fatalf("debug records leaked through the default level: %q", got)
	}

	filter.SetLevel("jsonfile", slog.LevelDebug)
	series.Debug("still dropped")
	driver.Debug("now visible")

	got := buf.String()
	if !strings.Contains(got, "now visible") {
		t.Fatalf("expected jsonfile debug output after SetLevel, got %q", got)
	}
	if strings.Contains(got, "still dropped") {
		t.Fatalf("SetLevel(jsonfile) must not affect the series component: %q", got)
	}
}

func TestComponentFilterSetLevelReachesPreviouslyScopedLoggers(t *testing.T) {
	var buf bytes.Buffer
	logger, filter := New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}), slog.LevelInfo)

	// Scoped before SetLevel: the derived handler shares the parent's
	// level snapshot, so the change still applies.
	driver := Scoped(logger, "memdriver", "instance", "a")
	filter.SetLevel("memdriver", slog.LevelDebug)
	driver.Debug("visible")

	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("SetLevel should reach loggers scoped before the call, got %q", buf.String())
	}
}

func TestComponentFilterClearLevelRevertsToDefault(t *testing.T) {
	var buf bytes.Buffer
	logger, filter := New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}), slog.LevelWarn)

	filter.SetLevel("series", slog.LevelDebug)
	if filter.Level("series") != slog.LevelDebug {
		t.Fatalf("Level(series) = %v, want Debug", filter.Level("series"))
	}
	filter.ClearLevel("series")
	if filter.Level("series") != slog.LevelWarn {
		t.Fatalf("Level(series) after ClearLevel = %v, want the default Warn", filter.Level("series"))
	}
	if filter.DefaultLevel() != slog.LevelWarn {
		t.Fatalf("DefaultLevel() = %v, want Warn", filter.DefaultLevel())
	}

	Scoped(logger, "series").Info("below default after clear")
	if strings.Contains(buf.String(), "below default") {
		t.Fatalf("info record leaked after ClearLevel reverted to Warn: %q", buf.String())
	}
}

func TestComponentFilterPassesUnscopedRecordsAtDefault(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(slog.NewTextHandler(&buf, nil), slog.LevelInfo)
	logger.Info("no component attribute")
	if !strings.Contains(buf.String(), "no component attribute") {
		t.Fatalf("records without a component should pass at the default level, got %q", buf.String())
	}
}
