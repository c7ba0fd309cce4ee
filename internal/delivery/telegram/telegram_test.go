package telegram

import (
	"context"
	"fmt"
	"poseidon/config"
	"poseidon/internal/contract"
	"poseidon/internal/dto"
	"poseidon/internal/model"
	"poseidon/internal/service"
	"poseidon/internal/strategy"
	"poseidon/pkg/cache"
	"poseidon/pkg/logger"
	"poseidon/pkg/telegram"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

const ownerChat int64 = 4242

type fakeContext struct {
	telebot.Context
	chat     *telebot.Chat
	text     string
	args     []string
	data     string
	callback *telebot.Callback
	sent     []string
	edited   []string
}

func (f *fakeContext) Chat() *telebot.Chat         { return f.chat }
func (f *fakeContext) Text() string                { return f.text }
func (f *fakeContext) Args() []string              { return f.args }
func (f *fakeContext) Data() string                { return f.data }
func (f *fakeContext) Callback() *telebot.Callback { return f.callback }
func (f *fakeContext) Respond(resp ...*telebot.CallbackResponse) error {
	return nil
}
func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	f.sent = append(f.sent, fmt.Sprint(what))
	return nil
}
func (f *fakeContext) Edit(what interface{}, opts ...interface{}) error {
	f.edited = append(f.edited, fmt.Sprint(what))
	return nil
}

func newContext(args ...string) *fakeContext {
	return &fakeContext{chat: &telebot.Chat{ID: ownerChat}, args: args}
}

type nopExecutor struct{}

func (nopExecutor) PlaceOrder(ctx context.Context, req dto.OrderRequest) (*dto.PlacedOrder, error) {
	return &dto.PlacedOrder{Symbol: req.Symbol}, nil
}
func (nopExecutor) PartialClose(ctx context.Context, symbol string, qty float64) error { return nil }
func (nopExecutor) CloseAll(ctx context.Context, symbol string) error              { return nil }

type stubPipeline struct {
	active bool
	record *dto.SignalAnalysisRecord
}

func (p *stubPipeline) Evaluate(ctx context.Context, symbol string, opts dto.EvaluateOptions) *dto.SignalAnalysisRecord {
	return p.record
}
func (p *stubPipeline) SetActive(active bool)                          { p.active = active }
func (p *stubPipeline) Active() bool                                   { return p.active }
func (p *stubPipeline) SetConsumer(consumer contract.DecisionConsumer) {}

type stubScheduler struct {
	err error
}

func (s *stubScheduler) Start(ctx context.Context) error { return nil }
func (s *stubScheduler) Stop() context.Context          { return context.Background() }
func (s *stubScheduler) Jobs() []dto.JobDefinition {
	return []dto.JobDefinition{
		{Name: "market_scan", Cron: "*/30 * * * * *"},
		{Name: "journal_clean_up"},
	}
}
func (s *stubScheduler) RunJob(ctx context.Context, name string) (strategy.JobResult, error) {
	if s.err != nil {
		return strategy.JobResult{ExitCode: strategy.JOB_EXIT_CODE_FAILED}, s.err
	}
	return strategy.JobResult{ExitCode: strategy.JOB_EXIT_CODE_SUCCESS}, nil
}
func (s *stubScheduler) History(ctx context.Context, name string, limit int) ([]model.TaskExecutionHistory, error) {
	return []model.TaskExecutionHistory{{JobName: name, Status: model.StatusRunning, StartedAt: time.Now()}}, nil
}

func newHandler(t *testing.T) (*TelegramBotHandler, *stubPipeline, *stubScheduler) {
	t.Helper()
	log := logger.NewNop()
	cfg := &config.Config{Telegram: config.TelegramConfig{ChatID: ownerChat}}
	feed := service.NewFeedService(cfg, log, cache.NewCache(time.Minute, time.Minute), nil, nil, nil)
	tracker, err := service.NewTpTracker(dto.DefaultTpConfig(), log, nopExecutor{}, feed)
	require.NoError(t, err)

	pipeline := &stubPipeline{active: true}
	scheduler := &stubScheduler{}
	svc := &service.Service{
		FeedService:      feed,
		Tracker:          tracker,
		SignalPipeline:   pipeline,
		SchedulerService: scheduler,
	}
	notifier := telegram.NewNotifier(&cfg.Telegram, log, nil)
	return NewTelegramBotHandler(context.Background(), cfg, log, nil, notifier, svc), pipeline, scheduler
}

func TestOwnerChatMiddleware(t *testing.T) {
	h, _, _ := newHandler(t)
	called := 0
	next := func(c telebot.Context) error {
		called++
		return nil
	}
	mw := h.OwnerChatMiddleware()(next)

	require.NoError(t, mw(newContext()))
	require.NoError(t, mw(&fakeContext{chat: &telebot.Chat{ID: 1}}))
	require.NoError(t, mw(&fakeContext{}))
	assert.Equal(t, 1, called)
}

func TestHandleStatusAndExit(t *testing.T) {
	h, _, _ := newHandler(t)
	ctx := context.Background()

	c := newContext()
	require.NoError(t, h.handleStatus(ctx, c))
	assert.Equal(t, []string{"No positions are being tracked."}, c.sent)

	require.True(t, h.service.Tracker.Init(ctx, dto.PositionOpen{Symbol: "SOLUSDTM", Side: dto.SideLong, EntryPrice: 100, Size: 4}))
	c = newContext()
	require.NoError(t, h.handleStatus(ctx, c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "<b>SOLUSDTM</b> LONG")

	c = newContext()
	require.NoError(t, h.handleExit(ctx, c))
	assert.Equal(t, "Usage: /exit SYMBOL", c.sent[0])

	c = newContext("btcusdtm")
	require.NoError(t, h.handleExit(ctx, c))
	assert.Equal(t, "BTCUSDTM is not tracked.", c.sent[0])

	c = newContext("solusdtm")
	require.NoError(t, h.handleExit(ctx, c))
	assert.Contains(t, c.sent[0], "SOLUSDTM marked as manually exited")
	st := h.service.Tracker.GetStatus("SOLUSDTM")
	require.NotNil(t, st)
	assert.True(t, st.Exited)
	assert.Equal(t, dto.ExitManual, st.ExitReason)
}

func TestHandleActive(t *testing.T) {
	h, pipeline, _ := newHandler(t)
	ctx := context.Background()

	c := newContext()
	require.NoError(t, h.handleActive(ctx, c))
	assert.Equal(t, "Scanner active: true", c.sent[0])

	c = newContext("off")
	require.NoError(t, h.handleActive(ctx, c))
	assert.False(t, pipeline.Active())
	assert.Equal(t, "scanner paused", h.service.FeedService.Recent(1)[0].Msg)

	c = newContext("maybe")
	require.NoError(t, h.handleActive(ctx, c))
	assert.Equal(t, "Usage: /active on|off", c.sent[0])
	assert.False(t, pipeline.Active())
}

func TestHandleEvaluate(t *testing.T) {
	h, pipeline, _ := newHandler(t)
	ctx := context.Background()

	c := newContext("pepe")
	require.NoError(t, h.handleEvaluate(ctx, c))
	assert.Contains(t, c.sent[0], "PEPE was rejected")

	pipeline.record = &dto.SignalAnalysisRecord{
		Symbol: "PEPEUSDTM", Signal: dto.SignalBullish, Category: dto.CategoryMeme,
		Confidence: 72.5, Skipped: true, SkipReason: "meme_low_confidence", TrapWarning: true,
	}
	c = newContext("pepe")
	require.NoError(t, h.handleEvaluate(ctx, c))
	assert.Contains(t, c.sent[0], "<b>PEPEUSDTM</b> BULLISH")
	assert.Contains(t, c.sent[0], "Confidence 72.5")
	assert.Contains(t, c.sent[0], "Trap warning")
	assert.Contains(t, c.sent[0], "Skipped: meme_low_confidence")
}

func TestHandleJobs(t *testing.T) {
	h, _, scheduler := newHandler(t)
	ctx := context.Background()

	c := newContext()
	require.NoError(t, h.handleJobs(ctx, c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "<b>market_scan</b>")
	assert.Contains(t, c.sent[0], "manual only")

	c = &fakeContext{chat: &telebot.Chat{ID: ownerChat}, data: "market_scan", callback: &telebot.Callback{}}
	require.NoError(t, h.handleBtnRunJob(ctx, c))
	require.Len(t, c.edited, 1)
	assert.Contains(t, c.edited[0], "🟢 <b>market_scan</b> finished with 200")
	assert.Contains(t, c.edited[0], "RUNNING")

	scheduler.err = dto.ErrJobRunning
	c = &fakeContext{chat: &telebot.Chat{ID: ownerChat}, data: "market_scan", callback: &telebot.Callback{}}
	require.NoError(t, h.handleBtnRunJob(ctx, c))
	assert.Equal(t, []string{"⏳ market_scan is already running."}, c.sent)
}
