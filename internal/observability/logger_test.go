package observability

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := DefaultLoggingConfig()
			cfg.Level = tt.level
			logger := NewLogger(cfg)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestNewLoggerConsoleFormat(t *testing.T) {
	cfg := DefaultLoggingConfig()
	cfg.Format = "console"
	logger := NewLogger(cfg)
	// Console formatting must not affect the configured level.
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestWithCycleContext(t *testing.T) {
	logger := NewLogger(DefaultLoggingConfig())
	scoped := WithCycleContext(logger, "ingestion", "run-1")
	// The scoped logger keeps the parent level.
	assert.Equal(t, logger.GetLevel(), scoped.GetLevel())
}
