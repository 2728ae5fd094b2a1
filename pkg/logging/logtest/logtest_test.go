package logtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, logs := New(zapcore.InfoLevel)

	logger.Named("store").Error("backend error", zap.String("error", "db down"))
	logger.Debug("hidden")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "store", entry.LoggerName)
	assert.Equal(t, "db down", entry.ContextMap()["error"])
}
