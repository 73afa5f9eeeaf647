package logger

import (
	"testing"

	"github.com/stagewire/stagewire/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewRespectsLevel(t *testing.T) {
	log, err := New(config.Config{
		AppName:     "stagewire",
		AppVersion:  "0.1.0",
		Environment: "production",
		LogLevel:    "warn",
	})
	require.NoError(t, err)
	defer func() { _ = log.Sync() }()

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNewDefaultsToInfo(t *testing.T) {
	log, err := New(config.Config{Environment: "development"})
	require.NoError(t, err)
	defer func() { _ = log.Sync() }()

	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.Config{LogLevel: "loud"})
	assert.Error(t, err)
}
