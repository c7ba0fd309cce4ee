package service

import (
	"context"
	"encoding/json"
	"poseidon/config"
	"poseidon/internal/dto"
	"poseidon/internal/model"
	"poseidon/internal/repository"
	"poseidon/pkg/cache"
	"poseidon/pkg/logger"
	"poseidon/pkg/metrics"
	"poseidon/pkg/telegram"
	"poseidon/pkg/utils"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	feedRingSize         = 500
	feedSubscriberBuffer = 64
	feedPersistTimeout   = 5 * time.Second
)

type FeedService interface {
	Emit(event dto.FeedEvent)
	EmitThrottled(key string, cooldown time.Duration, event dto.FeedEvent) bool
	Recent(limit int) []dto.FeedEvent
	// Subscribe streams every event emitted after the call. Slow subscribers lose events.
	Subscribe() (<-chan dto.FeedEvent, func())
}

type feedService struct {
	cfg      *config.Config
	log      *logger.Logger
	cache    cache.Cache
	repo     repository.FeedEventRepository
	notifier *telegram.Notifier
	metrics  *metrics.Metrics
	clock    utils.Clock

	mu     sync.RWMutex
	ring   []dto.FeedEvent
	next   int
	filled bool
	subs   map[int]chan dto.FeedEvent
	subSeq int
}

func NewFeedService(
	cfg *config.Config,
	log *logger.Logger,
	c cache.Cache,
	repo repository.FeedEventRepository,
	notifier *telegram.Notifier,
	m *metrics.Metrics,
) FeedService {
	return &feedService{
		cfg:      cfg,
		log:      log,
		cache:    c,
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		clock:    utils.SystemClock,
		ring:     make([]dto.FeedEvent, feedRingSize),
		subs:     make(map[int]chan dto.FeedEvent),
	}
}

func (s *feedService) Emit(event dto.FeedEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Ts.IsZero() {
		event.Ts = s.clock()
	}
	if event.Level == "" {
		event.Level = dto.LevelInfo
	}

	s.mu.Lock()
	s.ring[s.next] = event
	s.next = (s.next + 1) % len(s.ring)
	if s.next == 0 {
		s.filled = true
	}
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
		}
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.FeedEvents.WithLabelValues(string(event.Kind)).Inc()
	}
	if s.repo != nil {
		utils.GoSafe(s.log, func() { s.persist(event) })
	}
	if event.Kind.Discrete() && s.notifier.Enabled() {
		msg := telegram.FormatEventMessage(string(event.Kind), event.Symbol, event.Msg, event.Ts, event.Data)
		utils.GoSafe(s.log, func() { s.notifier.SendAlert(msg) })
	}
}

// EmitThrottled emits at most once per key within cooldown and reports whether it did.
func (s *feedService) EmitThrottled(key string, cooldown time.Duration, event dto.FeedEvent) bool {
	if cooldown > 0 && !s.cache.Add("throttle:"+key, true, cooldown) {
		return false
	}
	s.Emit(event)
	return true
}

// Recent returns up to limit events, newest first.
func (s *feedService) Recent(limit int) []dto.FeedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	size := s.next
	if s.filled {
		size = len(s.ring)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]dto.FeedEvent, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.next - i + len(s.ring)) % len(s.ring)
		out = append(out, s.ring[idx])
	}
	return out
}

func (s *feedService) Subscribe() (<-chan dto.FeedEvent, func()) {
	ch := make(chan dto.FeedEvent, feedSubscriberBuffer)

	s.mu.Lock()
	id := s.subSeq
	s.subSeq++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *feedService) persist(event dto.FeedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), feedPersistTimeout)
	defer cancel()

	var data datatypes.JSON
	if len(event.Data) > 0 {
		raw, err := json.Marshal(event.Data)
		if err != nil {
			s.log.WarnContext(ctx, "Failed to encode feed event data", logger.StringField("kind", string(event.Kind)), logger.ErrorField(err))
		} else {
			data = datatypes.JSON(raw)
		}
	}

	row := &model.FeedEvent{
		ID:     event.ID,
		Kind:   string(event.Kind),
		Level:  string(event.Level),
		Symbol: event.Symbol,
		Msg:    event.Msg,
		Data:   data,
		Ts:     event.Ts,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.log.WarnContext(ctx, "Failed to persist feed event", logger.StringField("kind", string(event.Kind)), logger.ErrorField(err))
	}
}
