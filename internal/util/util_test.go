package util

import (
	"log/slog"
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	a := NewID("gen")
	b := NewID("gen")
	if a == b {
		t.Fatalf("NewID returned duplicate %q", a)
	}
	if !strings.HasPrefix(a, "gen_") || len(a) != len("gen_")+36 {
		t.Fatalf("NewID(gen) = %q", a)
	}
	if id := NewID(""); len(id) != 36 {
		t.Fatalf("NewID(\"\") = %q", id)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}
