package telegram

import (
	"context"
	"poseidon/pkg/logger"
	"strings"
	"time"

	"gopkg.in/telebot.v3"
)

var (
	btnRunJob        = telebot.Btn{Unique: "btn_run_job"}
	btnJobList       = telebot.Btn{Text: "⬅️ Back", Unique: "btn_job_list"}
	btnDeleteMessage = telebot.Btn{Text: "🗑 Close", Unique: "btn_delete_message"}
)

const commonErrorInternal = "Something went wrong, please try again."

const helpMessage = `🤖 <b>Poseidon futures bot</b>

/status - tracked positions and their take-profit state
/exit SYMBOL - stop tracking a position as manually closed
/evaluate SYMBOL - run the signal pipeline for one symbol
/active [on|off] - show or toggle the market scanner
/jobs - scheduled jobs, run one manually
/help - this message`

func (t *TelegramBotHandler) WithContext(handler func(ctx context.Context, c telebot.Context) error) func(c telebot.Context) error {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(t.ctx, 2*time.Minute)
		defer cancel()

		return handler(ctx, c)
	}
}

func (t *TelegramBotHandler) RegisterHandlers() {
	t.bot.Use(t.OwnerChatMiddleware())

	t.bot.Handle("/start", t.WithContext(t.handleHelp))
	t.bot.Handle("/help", t.WithContext(t.handleHelp))
	t.bot.Handle("/status", t.WithContext(t.handleStatus))
	t.bot.Handle("/exit", t.WithContext(t.handleExit))
	t.bot.Handle("/evaluate", t.WithContext(t.handleEvaluate))
	t.bot.Handle("/active", t.WithContext(t.handleActive))
	t.bot.Handle("/jobs", t.WithContext(t.handleJobs))
	t.bot.Handle(&btnRunJob, t.WithContext(t.handleBtnRunJob))
	t.bot.Handle(&btnJobList, t.WithContext(t.handleJobs))
	t.bot.Handle(&btnDeleteMessage, t.WithContext(t.handleBtnDeleteMessage))
	t.bot.Handle(telebot.OnText, t.WithContext(t.handleTextMessage))
}

// OwnerChatMiddleware drops every update that does not come from the configured chat.
func (t *TelegramBotHandler) OwnerChatMiddleware() telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			chat := c.Chat()
			if chat == nil || chat.ID != t.cfg.Telegram.ChatID {
				if chat != nil {
					t.log.Warn("Ignoring telegram update from unknown chat", logger.Field("chat_id", chat.ID))
				}
				return nil
			}
			return next(c)
		}
	}
}

func (t *TelegramBotHandler) handleHelp(ctx context.Context, c telebot.Context) error {
	return t.telegram.Reply(ctx, c, helpMessage, telebot.ModeHTML)
}

func (t *TelegramBotHandler) handleTextMessage(ctx context.Context, c telebot.Context) error {
	if strings.HasPrefix(c.Text(), "/") {
		return t.telegram.Reply(ctx, c, "Unknown command. Use /help to list the commands.")
	}
	return nil
}

func (t *TelegramBotHandler) handleBtnDeleteMessage(ctx context.Context, c telebot.Context) error {
	_ = c.Respond()
	return c.Delete()
}

// symbolArg returns the first command argument, uppercased.
func symbolArg(c telebot.Context) string {
	args := c.Args()
	if len(args) == 0 {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(args[0]))
}
