package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type typedErr struct{}

func (typedErr) Error() string     { return "boom" }
func (typedErr) ErrorType() string { return "network_error" }

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Output: &buf, Component: ComponentQuery})

	logger.Info("fetched", FieldQuery, "getBalance")
	out := buf.String()
	if !strings.Contains(out, "component=query") || !strings.Contains(out, "query=getBalance") {
		t.Fatalf("missing fields in %q", out)
	}

	buf.Reset()
	logger.WithComponent(ComponentCache).Debug("evicted")
	if !strings.Contains(buf.String(), "component=cache") {
		t.Fatalf("component not replaced in %q", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	logger := Discard().WithComponent(ComponentRates)
	ctx := WithLogger(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Fatal("expected logger from context")
	}
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Fatalf("unexpected fallback component %q", got.Component())
	}
}

func TestWithErrorType(t *testing.T) {
	f := NewFields().WithError(errors.Join(errors.New("ctx"), typedErr{}))
	if f[FieldErrorType] != "network_error" {
		t.Fatalf("expected error type, got %v", f)
	}
	if len(NewFields().WithError(nil)) != 0 {
		t.Fatal("nil error must not add fields")
	}
}

func TestLogRequestLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelWarn, Output: &buf}))

	sl.LogRequest(context.Background(), "r1", "GET", "/users/current", 200, time.Millisecond, nil)
	if buf.Len() != 0 {
		t.Fatalf("successful request should log below warn, got %q", buf.String())
	}

	sl.LogRequest(context.Background(), "r2", "POST", "/auth/sign-in", 401, time.Millisecond, errors.New("unauthorized"))
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("expected warn record, got %q", buf.String())
	}
}
