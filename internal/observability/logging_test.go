package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/tactician/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "info", Format: "json"}, "tactician-sim")
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_Console(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "console"}, "")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_DefaultConfig(t *testing.T) {
	logger, err := NewLogger(config.Default().Logging, "tactician-sim")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "trace", Format: "json"}, "")
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "info", Format: "xml"}, "")
	assert.Error(t, err)
}

func TestNewLogger_AllLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := NewLogger(config.LoggingConfig{Level: level, Format: "json"}, "")
		require.NoError(t, err, "level %q should be valid", level)
		assert.NotNil(t, logger)
	}
}

func TestNewLogger_ComponentOverrides(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		Components: map[string]string{"sequence": "debug", "dice": "warn"},
	}, "")
	require.NoError(t, err)

	assert.Nil(t, logger.Check(zapcore.DebugLevel, "root"))
	assert.NotNil(t, logger.Named("planner").Named("sequence").Check(zapcore.DebugLevel, "choice"))
	assert.Nil(t, logger.Named("dice").Check(zapcore.InfoLevel, "roll"))
	assert.NotNil(t, logger.Named("dice").Check(zapcore.WarnLevel, "roll"))
}

func TestNewLogger_InvalidComponentLevel(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "info", Format: "json", Components: map[string]string{"dice": "loud"}}, "")
	assert.ErrorContains(t, err, "dice")
}

func TestWithComponentLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(WithComponentLevels(core, zapcore.InfoLevel, map[string]zapcore.Level{
		"sequence": zapcore.DebugLevel,
		"planner":  zapcore.WarnLevel,
	}))

	logger.Debug("root debug")
	logger.Info("root info")
	planner := logger.Named("planner").With(zap.String("unit", "u1"))
	planner.Info("planner info")
	planner.Warn("planner warn")
	planner.Named("sequence").Debug("sequence chosen")

	var msgs []string
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"root info", "planner warn", "sequence chosen"}, msgs)
	assert.Equal(t, "u1", logs.FilterMessage("sequence chosen").All()[0].ContextMap()["unit"])
}
