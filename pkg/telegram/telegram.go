package telegram

import (
	"context"
	"fmt"
	"poseidon/config"
	"poseidon/pkg/logger"
	"poseidon/pkg/ratelimit"
	"strconv"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// Sender is the subset of *telebot.Bot the notifier needs.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Notifier pushes plain-text messages to a single chat, rate limited globally and per chat.
type Notifier struct {
	cfg           *config.TelegramConfig
	log           *logger.Logger
	sender        Sender
	globalLimiter *rate.Limiter
	chatLimiters  *ratelimit.LimiterStore
}

// NewBot returns nil when no token is configured.
func NewBot(cfg *config.TelegramConfig) (*telebot.Bot, error) {
	if cfg.BotToken == "" {
		return nil, nil
	}
	bot, err := telebot.NewBot(telebot.Settings{
		Token:   cfg.BotToken,
		Poller:  &telebot.LongPoller{Timeout: cfg.TimeoutDuration},
		Offline: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, nil
}

func NewNotifier(cfg *config.TelegramConfig, log *logger.Logger, sender Sender) *Notifier {
	perSecond := cfg.MaxGlobalRequestPerSecond
	if perSecond <= 0 {
		perSecond = 20
	}
	return &Notifier{
		cfg:           cfg,
		log:           log,
		sender:        sender,
		globalLimiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
		// telegram allows roughly one message per second into the same chat
		chatLimiters: ratelimit.NewLimiterStore(rate.Limit(1), 3),
	}
}

// Enabled is false when there is no bot or no destination chat.
func (n *Notifier) Enabled() bool {
	return n != nil && n.sender != nil && n.cfg.ChatID != 0
}

func (n *Notifier) Send(ctx context.Context, message string) error {
	if !n.Enabled() {
		return nil
	}
	if err := n.checkRateLimit(ctx, n.cfg.ChatID); err != nil {
		return err
	}
	if _, err := n.sender.Send(&telebot.Chat{ID: n.cfg.ChatID}, message); err != nil {
		n.log.WarnContext(ctx, "Failed to send telegram message", logger.ErrorField(err))
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// SendAlert matches logger.AlertFunc.
func (n *Notifier) SendAlert(message string) {
	if !n.Enabled() {
		return
	}
	timeout := n.cfg.TimeoutDuration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = n.Send(ctx, message)
}

// Reply answers an incoming update in its own chat under the same rate limits as Send.
func (n *Notifier) Reply(ctx context.Context, c telebot.Context, what interface{}, opts ...interface{}) error {
	if chat := c.Chat(); chat != nil {
		if err := n.checkRateLimit(ctx, chat.ID); err != nil {
			return err
		}
	}
	if err := c.Send(what, opts...); err != nil {
		n.log.WarnContext(ctx, "Failed to reply on telegram", logger.ErrorField(err))
		return fmt.Errorf("failed to reply: %w", err)
	}
	return nil
}

// Edit replaces the text of a message the bot sent earlier, falling back to a new message.
func (n *Notifier) Edit(ctx context.Context, c telebot.Context, what interface{}, opts ...interface{}) error {
	if c.Callback() == nil {
		return n.Reply(ctx, c, what, opts...)
	}
	if chat := c.Chat(); chat != nil {
		if err := n.checkRateLimit(ctx, chat.ID); err != nil {
			return err
		}
	}
	if err := c.Edit(what, opts...); err != nil {
		n.log.WarnContext(ctx, "Failed to edit telegram message", logger.ErrorField(err))
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func (n *Notifier) checkRateLimit(ctx context.Context, chatID int64) error {
	if err := n.chatLimiters.Wait(ctx, strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("chat rate limit: %w", err)
	}
	if err := n.globalLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("global rate limit: %w", err)
	}
	return nil
}
