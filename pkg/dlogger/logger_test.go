package dlogger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestGetLogger(t *testing.T) {
	l, err := GetLogger(LogLevelInfo)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = GetLogger(LogLevelDebug)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = GetLogger(LogLevelNone)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))

	_, err = GetLogger("chatty")
	require.Error(t, err)

	assert.Panics(t, func() { _ = MustGetLogger("chatty") })
}

func TestFork(t *testing.T) {
	assert.NotNil(t, Fork(nil, "memory"))
	parent := MustGetLogger(LogLevelInfo)
	assert.NotNil(t, Fork(parent, "memory"))
}
