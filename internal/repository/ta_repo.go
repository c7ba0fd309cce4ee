package repository

import (
	"context"
	"fmt"
	"math"
	"poseidon/config"
	"poseidon/internal/dto"
	"poseidon/pkg/cache"
	"poseidon/pkg/common"
	"poseidon/pkg/indicators"
	"poseidon/pkg/logger"
	"poseidon/pkg/utils"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	taGranularity   = 15
	taMinCandles    = 40
	trapWickRatio   = 0.6
	volumeSpikeMult = 2.0
)

type TARepository interface {
	GetTA(ctx context.Context, symbol string) *dto.TASnapshot
}

type taRepository struct {
	cfg    *config.Config
	log    *logger.Logger
	kucoin KucoinRepository
	cache  cache.Cache
	clock  utils.Clock
}

func NewTARepository(cfg *config.Config, log *logger.Logger, kucoin KucoinRepository, c cache.Cache) TARepository {
	return &taRepository{
		cfg:    cfg,
		log:    log,
		kucoin: kucoin,
		cache:  c,
		clock:  utils.SystemClock,
	}
}

// GetTA returns the cached snapshot or derives a new one. Any fetch failure yields nil.
func (r *taRepository) GetTA(ctx context.Context, symbol string) *dto.TASnapshot {
	key := fmt.Sprintf(common.KEY_TA_SNAPSHOT, symbol)
	snap, err := cache.Remember(r.cache, key, r.cfg.Cache.TATTL, func() (*dto.TASnapshot, error) {
		return r.fetch(ctx, symbol)
	})
	if err != nil {
		if r.cache.Add("ta_err:"+symbol, true, 30*time.Second) {
			r.log.WarnContext(ctx, "TA unavailable", logger.StringField("symbol", symbol), logger.ErrorField(err))
		}
		return nil
	}
	return snap
}

func (r *taRepository) fetch(ctx context.Context, symbol string) (*dto.TASnapshot, error) {
	now := r.clock()
	var c15, h1, d1 []dto.Candle

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		c15, err = r.kucoin.GetKlines(gctx, symbol, taGranularity, now.Add(-48*time.Hour), now)
		return err
	})
	// wider ranges are best effort
	g.Go(func() error {
		var err error
		if h1, err = r.kucoin.GetKlines(gctx, symbol, 60, now.Add(-7*24*time.Hour), now); err != nil {
			r.log.DebugContext(ctx, "7d range unavailable", logger.StringField("symbol", symbol), logger.ErrorField(err))
			h1 = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if d1, err = r.kucoin.GetKlines(gctx, symbol, 1440, now.Add(-30*24*time.Hour), now); err != nil {
			r.log.DebugContext(ctx, "30d range unavailable", logger.StringField("symbol", symbol), logger.ErrorField(err))
			d1 = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap, ok := BuildSnapshot(symbol, c15, h1, d1)
	if !ok {
		return nil, fmt.Errorf("not enough candles for %s: %d", symbol, len(c15))
	}
	return snap, nil
}

// BuildSnapshot derives a TA snapshot from 15m candles, with 1h and 1d candles for the 7d and 30d ranges.
func BuildSnapshot(symbol string, c15, h1, d1 []dto.Candle) (*dto.TASnapshot, bool) {
	if len(c15) < taMinCandles {
		return nil, false
	}

	closes := make([]float64, len(c15))
	for i, c := range c15 {
		closes[i] = c.Close
	}
	last := c15[len(c15)-1]
	price := last.Close
	if !utils.IsPositiveFinite(price) {
		return nil, false
	}

	rsi := indicators.RSI(closes, 14)
	macd := indicators.MACD(closes, 12, 26, 9)
	hist, histOK := macd.LastHistogram()
	bb := indicators.Bollinger(closes, 20, 2)
	upper, lower := bb.Upper[len(closes)-1], bb.Lower[len(closes)-1]
	ema9 := indicators.EMA(closes, 9)
	ema21 := indicators.EMA(closes, 21)

	snap := &dto.TASnapshot{
		Symbol:     symbol,
		Price:      price,
		RSI:        rsi[len(rsi)-1],
		MACDSignal: dto.MACDNeutral,
		BBSignal:   dto.BBNeutral,
		Signal:     dto.SignalNeutral,
		Category:   dto.CategoryRegular,
	}

	if histOK {
		switch {
		case hist > 0:
			snap.MACDSignal = dto.MACDBuy
		case hist < 0:
			snap.MACDSignal = dto.MACDSell
		}
	}

	switch {
	case price >= upper:
		snap.BBSignal = dto.BBUpper
	case price <= lower:
		snap.BBSignal = dto.BBLower
	}

	snap.VolumeSpike = volumeSpike(c15)
	snap.TrapWarning = trapWarning(last, upper, lower)

	fast, slow := ema9[len(closes)-1], ema21[len(closes)-1]
	switch {
	case fast > slow && snap.MACDSignal == dto.MACDBuy:
		snap.Signal = dto.SignalBullish
	case fast < slow && snap.MACDSignal == dto.MACDSell:
		snap.Signal = dto.SignalBearish
	}

	snap.Range24h = rangeOf(tail(c15, 96))
	snap.Range7d = rangeOf(tail(h1, 168))
	snap.Range30d = rangeOf(tail(d1, 30))
	return snap, true
}

func volumeSpike(candles []dto.Candle) bool {
	n := len(candles)
	if n < 21 {
		return false
	}
	sum := 0.0
	for _, c := range candles[n-21 : n-1] {
		sum += c.Volume
	}
	avg := sum / 20
	return avg > 0 && candles[n-1].Volume > volumeSpikeMult*avg
}

// trapWarning flags a candle that pierced a band and was rejected back with a long wick.
func trapWarning(c dto.Candle, upper, lower float64) bool {
	span := c.High - c.Low
	if span <= 0 || upper <= 0 {
		return false
	}
	upperWick := c.High - math.Max(c.Open, c.Close)
	lowerWick := math.Min(c.Open, c.Close) - c.Low
	if c.High > upper && upperWick >= trapWickRatio*span {
		return true
	}
	if c.Low < lower && lowerWick >= trapWickRatio*span {
		return true
	}
	return false
}

func tail(c []dto.Candle, n int) []dto.Candle {
	if len(c) <= n {
		return c
	}
	return c[len(c)-n:]
}

func rangeOf(candles []dto.Candle) dto.PriceRange {
	var r dto.PriceRange
	for i, c := range candles {
		if i == 0 || c.High > r.High {
			r.High = c.High
		}
		if i == 0 || c.Low < r.Low {
			r.Low = c.Low
		}
	}
	return r
}
