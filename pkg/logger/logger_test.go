package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_Console(t *testing.T) {
	l, err := New(Options{Level: "debug", Encoding: "console"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestAlertCore_ForwardsFlaggedErrors(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	alerts := make(chan string, 4)
	core := NewAlertCore(obsCore, zapcore.ErrorLevel, func(msg string) { alerts <- msg })
	l := &Logger{zap.New(core)}

	l.ErrorContextWithAlert(context.Background(), "executor failed", StringField("symbol", "XBTUSDTM"))
	l.Error("plain error")
	l.WarnContext(context.Background(), "warn with flag", zap.Bool(KeySendAlert, true))

	select {
	case msg := <-alerts:
		assert.Contains(t, msg, "executor failed")
		assert.Contains(t, msg, "symbol: XBTUSDTM")
		assert.NotContains(t, msg, KeySendAlert)
	case <-time.After(time.Second):
		t.Fatal("alert was not sent")
	}

	select {
	case msg := <-alerts:
		t.Fatalf("unexpected alert: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, 3, logs.Len())
}

func TestFromContext(t *testing.T) {
	obsCore, logs := observer.New(zapcore.InfoLevel)
	base := NewNop()
	scoped := &Logger{zap.New(obsCore)}

	ctx := NewContext(context.Background(), scoped)
	base.InfoContext(ctx, "routed")
	base.InfoContext(context.Background(), "dropped")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "routed", logs.All()[0].Message)
}
