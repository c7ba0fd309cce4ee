package telegram

import (
	"context"
	"errors"
	"fmt"
	"poseidon/internal/dto"
	"poseidon/internal/model"
	"poseidon/internal/strategy"
	"poseidon/pkg/logger"
	"strings"

	"gopkg.in/telebot.v3"
)

func (t *TelegramBotHandler) handleJobs(ctx context.Context, c telebot.Context) error {
	if c.Callback() != nil {
		_ = c.Respond()
	}
	jobs := t.service.SchedulerService.Jobs()
	if len(jobs) == 0 {
		return t.telegram.Reply(ctx, c, "No jobs are configured.")
	}

	msg := strings.Builder{}
	msg.WriteString("📋 <b>Scheduled jobs</b>\n\n")
	menu := &telebot.ReplyMarkup{}
	rows := []telebot.Row{}
	for _, job := range jobs {
		schedule := job.Cron
		if schedule == "" {
			schedule = "manual only"
		}
		msg.WriteString(fmt.Sprintf("• <b>%s</b> <code>%s</code>\n", job.Name, schedule))
		rows = append(rows, menu.Row(menu.Data("▶️ "+job.Name, btnRunJob.Unique, job.Name)))
	}
	msg.WriteString("\n<i>Press a button to run a job now</i>")
	rows = append(rows, menu.Row(menu.Data(btnDeleteMessage.Text, btnDeleteMessage.Unique)))
	menu.Inline(rows...)

	return t.telegram.Edit(ctx, c, msg.String(), menu, telebot.ModeHTML)
}

func (t *TelegramBotHandler) handleBtnRunJob(ctx context.Context, c telebot.Context) error {
	name := c.Data()
	_ = c.Respond(&telebot.CallbackResponse{Text: "Running " + name})

	result, err := t.service.SchedulerService.RunJob(ctx, name)
	switch {
	case errors.Is(err, dto.ErrJobRunning):
		return t.telegram.Reply(ctx, c, fmt.Sprintf("⏳ %s is already running.", name))
	case errors.Is(err, dto.ErrJobNotFound):
		return t.telegram.Reply(ctx, c, fmt.Sprintf("Job %s not found.", name))
	case err != nil:
		t.log.ErrorContext(ctx, "Manual job run failed", logger.StringField("job", name), logger.ErrorField(err))
	}

	msg := strings.Builder{}
	msg.WriteString(fmt.Sprintf("%s <b>%s</b> finished with %d\n", exitIcon(result.ExitCode), name, result.ExitCode))
	if err != nil {
		msg.WriteString(fmt.Sprintf("⚠️ %s\n", err.Error()))
	}

	history, herr := t.service.SchedulerService.History(ctx, name, 5)
	if herr == nil && len(history) > 0 {
		msg.WriteString("\n📜 Recent runs:\n")
		for idx, h := range history {
			msg.WriteString(formatHistory(idx, h))
		}
	}

	menu := &telebot.ReplyMarkup{}
	menu.Inline(menu.Row(
		menu.Data("🔁 Run again", btnRunJob.Unique, name),
		menu.Data(btnJobList.Text, btnJobList.Unique),
	))
	return t.telegram.Edit(ctx, c, msg.String(), menu, telebot.ModeHTML)
}

func exitIcon(code int32) string {
	switch code {
	case strategy.JOB_EXIT_CODE_SUCCESS:
		return "🟢"
	case strategy.JOB_EXIT_CODE_PARTIAL_SUCCESS:
		return "🟠"
	case strategy.JOB_EXIT_CODE_SKIPPED:
		return "⚪️"
	default:
		return "🔴"
	}
}

func formatHistory(idx int, h model.TaskExecutionHistory) string {
	icon := "🟢"
	switch h.Status {
	case model.StatusRunning:
		icon = "🟡"
	case model.StatusFailed:
		icon = "🔴"
	case model.StatusTimeout:
		icon = "🟠"
	}
	started := h.StartedAt.UTC().Format("01/02 15:04:05")
	if !h.CompletedAt.Valid {
		return fmt.Sprintf("%d. %s %s - %s\n", idx+1, icon, started, strings.ToUpper(string(h.Status)))
	}
	return fmt.Sprintf("%d. %s %s %s - %d | %s (%.1fs)\n", idx+1, icon, started, h.Trigger, h.ExitCode.Int32, strings.ToUpper(string(h.Status)), float64(h.DurationMs)/1000)
}
