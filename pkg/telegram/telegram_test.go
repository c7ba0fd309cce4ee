package telegram

import (
	"context"
	"errors"
	"poseidon/config"
	"poseidon/pkg/logger"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	to   []string
	err  error
}

func (f *fakeSender) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, what.(string))
	f.to = append(f.to, to.Recipient())
	return &telebot.Message{}, nil
}

func TestNotifier_Send(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(&config.TelegramConfig{ChatID: 42, MaxGlobalRequestPerSecond: 5}, logger.NewNop(), sender)

	require.True(t, n.Enabled())
	require.NoError(t, n.Send(context.Background(), "hello"))
	assert.Equal(t, []string{"hello"}, sender.sent)
	assert.Equal(t, []string{"42"}, sender.to)
}

func TestNotifier_DisabledIsNoop(t *testing.T) {
	n := NewNotifier(&config.TelegramConfig{}, logger.NewNop(), nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Send(context.Background(), "ignored"))

	var nilNotifier *Notifier
	assert.False(t, nilNotifier.Enabled())
}

func TestNotifier_SendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("boom")}
	n := NewNotifier(&config.TelegramConfig{ChatID: 1}, logger.NewNop(), sender)
	assert.Error(t, n.Send(context.Background(), "x"))
}

func TestFormatEventMessage(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := FormatEventMessage("tp_step", "XBTUSDTM", "step 1 fired", ts, map[string]interface{}{
		"roi": 55.5,
		"qty": 2.5,
	})
	assert.Contains(t, msg, "🎯 [XBTUSDTM] TP STEP")
	assert.Contains(t, msg, "step 1 fired")
	assert.Contains(t, msg, "• qty: 2.5")
	assert.Less(t, strings.Index(msg, "qty"), strings.Index(msg, "roi"))
}
