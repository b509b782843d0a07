package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := New(tt.level)
			assert.NotNil(t, l)
			assert.True(t, l.Enabled(nil, tt.want))
			if tt.want != slog.LevelDebug {
				assert.False(t, l.Enabled(nil, tt.want-1))
			}
		})
	}
}

func TestDefault(t *testing.T) {
	l := Default()
	assert.NotNil(t, l)
	assert.True(t, l.Enabled(nil, slog.LevelInfo))
	assert.False(t, l.Enabled(nil, slog.LevelDebug))
}

func TestWith(t *testing.T) {
	l := Default().With("component", "scheduler")
	assert.NotNil(t, l)
	assert.NotNil(t, l.Logger)
}
