package telegram

import (
	"context"
	"errors"
	"fmt"
	"poseidon/internal/dto"
	"poseidon/pkg/logger"
	"poseidon/pkg/utils"
	"strings"

	"gopkg.in/telebot.v3"
)

func (t *TelegramBotHandler) handleStatus(ctx context.Context, c telebot.Context) error {
	states := t.service.Tracker.List()
	if len(states) == 0 {
		return t.telegram.Reply(ctx, c, "No positions are being tracked.")
	}

	msg := strings.Builder{}
	msg.WriteString("📊 <b>Tracked positions</b>\n\n")
	for _, st := range states {
		msg.WriteString(formatPosition(st))
		msg.WriteString("\n")
	}
	return t.telegram.Reply(ctx, c, msg.String(), telebot.ModeHTML)
}

func formatPosition(st *dto.PositionTrackState) string {
	icon := "🟢"
	if st.LastRoi < 0 {
		icon = "🔴"
	}
	if st.Exited {
		icon = "🏁"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>%s</b> %s (%s)\n", icon, st.Symbol, strings.ToUpper(string(st.Side)), st.Policy))
	b.WriteString(fmt.Sprintf(" • Entry %s | Last %s\n", utils.FormatFloat(st.EntryPrice), utils.FormatFloat(st.LastPrice)))
	b.WriteString(fmt.Sprintf(" • ROI %.1f%% (max %.1f%%) | Size %s/%s\n", st.LastRoi, st.MaxRoi, utils.FormatFloat(st.Size), utils.FormatFloat(st.OriginalSize)))
	if st.TrailActive {
		b.WriteString(fmt.Sprintf(" • Trail stop %s (drop %.0f%%), steps %d\n", utils.FormatFloat(st.TrailStop), st.TrailDrop*100, st.FiredSteps))
	}
	if st.Exited {
		b.WriteString(fmt.Sprintf(" • Exited: %s\n", st.ExitReason))
	}
	return b.String()
}

func (t *TelegramBotHandler) handleExit(ctx context.Context, c telebot.Context) error {
	symbol := symbolArg(c)
	if symbol == "" {
		return t.telegram.Reply(ctx, c, "Usage: /exit SYMBOL")
	}

	err := t.service.Tracker.MarkExited(ctx, symbol, dto.ExitManual)
	switch {
	case errors.Is(err, dto.ErrNotTracked):
		return t.telegram.Reply(ctx, c, fmt.Sprintf("%s is not tracked.", symbol))
	case err != nil:
		t.log.ErrorContext(ctx, "Failed to mark position exited", logger.StringField("symbol", symbol), logger.ErrorField(err))
		return t.telegram.Reply(ctx, c, commonErrorInternal)
	}
	return t.telegram.Reply(ctx, c, fmt.Sprintf("✅ %s marked as manually exited. It is journaled on the next monitor run.", symbol))
}

func (t *TelegramBotHandler) handleEvaluate(ctx context.Context, c telebot.Context) error {
	symbol := symbolArg(c)
	if symbol == "" {
		return t.telegram.Reply(ctx, c, "Usage: /evaluate SYMBOL")
	}

	record := t.service.SignalPipeline.Evaluate(ctx, symbol, dto.EvaluateOptions{Manual: true})
	if record == nil {
		return t.telegram.Reply(ctx, c, fmt.Sprintf("❌ %s was rejected (denylisted, no data or volume cap).", symbol))
	}
	return t.telegram.Reply(ctx, c, formatRecord(record), telebot.ModeHTML)
}

func formatRecord(r *dto.SignalAnalysisRecord) string {
	var b strings.Builder
	icon := "🚀"
	if r.Skipped {
		icon = "⏸"
	}
	b.WriteString(fmt.Sprintf("%s <b>%s</b> %s (%s)\n", icon, r.Symbol, strings.ToUpper(string(r.Signal)), r.Category))
	b.WriteString(fmt.Sprintf(" • Confidence %.1f | RSI %.1f\n", r.Confidence, r.RSI))
	b.WriteString(fmt.Sprintf(" • MACD %s | BB %s\n", r.MACDSignal, r.BBSignal))
	b.WriteString(fmt.Sprintf(" • Price %s | Volume %s\n", utils.FormatFloat(r.Price), utils.FormatFloat(r.Volume)))
	if r.Phase != "" {
		b.WriteString(fmt.Sprintf(" • Phase %s\n", r.Phase))
	}
	if r.TrapWarning {
		b.WriteString(" • ⚠️ Trap warning\n")
	}
	if r.Skipped {
		b.WriteString(fmt.Sprintf(" • Skipped: %s\n", r.SkipReason))
	}
	return b.String()
}

func (t *TelegramBotHandler) handleActive(ctx context.Context, c telebot.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return t.telegram.Reply(ctx, c, fmt.Sprintf("Scanner active: %t", t.service.SignalPipeline.Active()))
	}

	var active bool
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		active = true
	case "off", "false", "0":
		active = false
	default:
		return t.telegram.Reply(ctx, c, "Usage: /active on|off")
	}

	t.service.SignalPipeline.SetActive(active)
	msg := "scanner paused"
	if active {
		msg = "scanner activated"
	}
	t.service.FeedService.Emit(dto.FeedEvent{Kind: dto.FeedInfo, Level: dto.LevelInfo, Msg: msg})
	return t.telegram.Reply(ctx, c, "✅ "+msg)
}
