package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestSetupLevel(t *testing.T) {
	tests := []struct {
		level        string
		debugEnabled bool
		infoEnabled  bool
	}{
		{"debug", true, true},
		{"DEBUG", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"", false, true},        // default
		{"bogus", false, true},   // unrecognized falls back to info
	}

	ctx := context.Background()
	for _, tt := range tests {
		logger := Setup(tt.level, "")
		if got := logger.Enabled(ctx, slog.LevelDebug); got != tt.debugEnabled {
			t.Errorf("Setup(%q): debug enabled = %v, want %v", tt.level, got, tt.debugEnabled)
		}
		if got := logger.Enabled(ctx, slog.LevelInfo); got != tt.infoEnabled {
			t.Errorf("Setup(%q): info enabled = %v, want %v", tt.level, got, tt.infoEnabled)
		}
	}
}

func TestSetupFormat(t *testing.T) {
	if logger := Setup("info", "json"); logger == nil {
		t.Fatal("json format returned nil logger")
	}
	if logger := Setup("info", "text"); logger == nil {
		t.Fatal("text format returned nil logger")
	}
}
