package telegram

import (
	"context"
	"poseidon/config"
	"poseidon/internal/service"
	"poseidon/pkg/logger"
	"poseidon/pkg/telegram"
	"time"

	"gopkg.in/telebot.v3"
)

// TelegramBotHandler serves the operator commands over a long-polling bot restricted to the configured chat.
type TelegramBotHandler struct {
	ctx      context.Context
	cfg      *config.Config
	bot      *telebot.Bot
	log      *logger.Logger
	telegram *telegram.Notifier
	service  *service.Service
}

func NewTelegramBotHandler(
	ctx context.Context,
	cfg *config.Config,
	log *logger.Logger,
	bot *telebot.Bot,
	notifier *telegram.Notifier,
	service *service.Service) *TelegramBotHandler {
	return &TelegramBotHandler{
		ctx:      ctx,
		cfg:      cfg,
		log:      log,
		bot:      bot,
		telegram: notifier,
		service:  service,
	}
}

// Start blocks while the poller runs. It returns at once when no bot is configured.
func (t *TelegramBotHandler) Start() {
	if t.bot == nil {
		t.log.Info("Telegram bot is disabled")
		return
	}
	if t.cfg.Telegram.ChatID == 0 {
		t.log.Warn("Telegram chat_id is not set, every command will be ignored")
	}

	t.RegisterHandlers()
	t.log.Info("Starting Telegram bot...", logger.StringField("username", t.bot.Me.Username))
	t.bot.Start()
}

func (t *TelegramBotHandler) Stop() {
	if t.bot == nil {
		return
	}
	t.log.Info("Stopping Telegram bot...")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(t.ctx), 10*time.Second)
	defer cancel()

	stopDone := make(chan struct{})
	go func() {
		t.bot.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.log.Info("Telegram bot stopped successfully")
	case <-ctx.Done():
		t.log.Warn("Timeout while stopping bot, forcing shutdown")
	}
}
