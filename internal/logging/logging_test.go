package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTemporalLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewTemporalLogger(zap.New(core))

	l.Info("Starting iteration", "iteration", 3)
	l.With("session_id", "s1").Warn("Capture failed", 42, "odd")
	l.Debug("dangling", "key")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)

	assert.Equal(t, "Starting iteration", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.EqualValues(t, 3, entries[0].ContextMap()["iteration"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "s1", entries[1].ContextMap()["session_id"])
	assert.Equal(t, "odd", entries[1].ContextMap()["42"])

	assert.Equal(t, "", entries[2].ContextMap()["key"])
}

func TestNew(t *testing.T) {
	for _, verbose := range []bool{true, false} {
		logger, err := New(verbose)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
	assert.NotNil(t, Must(false))
}
