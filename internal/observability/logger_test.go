package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	cases := []struct {
		cfg  LogConfig
		want zapcore.Level
	}{
		{LogConfig{}, zapcore.InfoLevel},
		{LogConfig{Level: "DEBUG", Format: "console"}, zapcore.DebugLevel},
		{LogConfig{Level: "warn"}, zapcore.WarnLevel},
		{LogConfig{Level: "loud"}, zapcore.InfoLevel},
	}
	for _, tc := range cases {
		logger, err := NewLogger(tc.cfg)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(tc.want), "%+v", tc.cfg)
		if tc.want > zapcore.DebugLevel {
			assert.False(t, logger.Core().Enabled(tc.want-1), "%+v", tc.cfg)
		}
	}
}

func TestNamedToleratesNil(t *testing.T) {
	assert.NotNil(t, Named(nil, "chat"))
}
