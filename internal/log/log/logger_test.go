package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
}

func TestNew(t *testing.T) {
	l, err := New("payments-webhooks", "debug")
	require.NoError(t, err)
	assert.True(t, l.Logger().Core().Enabled(zapcore.DebugLevel))

	l, err = New("payments-webhooks", "error")
	require.NoError(t, err)
	assert.False(t, l.Logger().Core().Enabled(zapcore.WarnLevel))
}

func TestKeyvalsBecomeFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("workflow started", "workflow_id", "stripe-event-evt_1", "attempt", 2)
	l.With("namespace", "default").Warn("retrying")

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "workflow started", entries[0].Message)
	assert.Equal(t, "stripe-event-evt_1", entries[0].ContextMap()["workflow_id"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["attempt"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "default", entries[1].ContextMap()["namespace"])
}
