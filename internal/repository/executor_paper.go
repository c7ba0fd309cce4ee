package repository

import (
	"context"
	"fmt"
	"poseidon/internal/contract"
	"poseidon/internal/dto"
	"poseidon/pkg/logger"
	"poseidon/pkg/utils"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

type paperPosition struct {
	symbol   string
	side     dto.Side
	size     decimal.Decimal
	entry    decimal.Decimal
	margin   decimal.Decimal
	leverage decimal.Decimal
	lotSize  float64
	mark     decimal.Decimal
}

// PaperExecutor simulates a futures account in memory. Fills happen at the current ticker price.
type PaperExecutor struct {
	log      *logger.Logger
	prices   contract.PriceSource
	mu       sync.Mutex
	balance  decimal.Decimal
	realized decimal.Decimal
	open     map[string]*paperPosition
}

func NewPaperExecutor(log *logger.Logger, prices contract.PriceSource, balanceUSDT float64) *PaperExecutor {
	return &PaperExecutor{
		log:     log,
		prices:  prices,
		balance: decimal.NewFromFloat(balanceUSDT),
		open:    make(map[string]*paperPosition),
	}
}

func (p *PaperExecutor) price(ctx context.Context, symbol string, fallback float64) (decimal.Decimal, error) {
	px, err := p.prices.GetTicker(ctx, symbol)
	if err != nil || !utils.IsPositiveFinite(px) {
		if utils.IsPositiveFinite(fallback) {
			return decimal.NewFromFloat(fallback), nil
		}
		if err == nil {
			err = dto.ErrNoPrice
		}
		return decimal.Zero, fmt.Errorf("paper fill price for %s: %w", symbol, err)
	}
	return decimal.NewFromFloat(px), nil
}

func (p *PaperExecutor) PlaceOrder(ctx context.Context, req dto.OrderRequest) (*dto.PlacedOrder, error) {
	if !req.Side.Valid() {
		return nil, fmt.Errorf("invalid side %q", req.Side)
	}
	size := utils.FloorToLot(req.Size, req.LotSize)
	if size <= 0 || (req.MinSize > 0 && size < req.MinSize) {
		return nil, fmt.Errorf("%w: size %v below lot/min size", dto.ErrInvalidQuantity, req.Size)
	}
	leverage := req.Leverage
	if leverage <= 0 {
		leverage = 1
	}

	fill, err := p.price(ctx, req.Symbol, req.RefPrice)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.open[req.Symbol]; exists {
		return nil, fmt.Errorf("paper position already open for %s", req.Symbol)
	}

	qty := decimal.NewFromFloat(size)
	lev := decimal.NewFromFloat(leverage)
	margin := fill.Mul(qty).Div(lev)
	if margin.GreaterThan(p.balance) {
		return nil, fmt.Errorf("insufficient paper balance: need %s have %s", margin.StringFixed(2), p.balance.StringFixed(2))
	}

	p.balance = p.balance.Sub(margin)
	p.open[req.Symbol] = &paperPosition{
		symbol:   req.Symbol,
		side:     req.Side,
		size:     qty,
		entry:    fill,
		margin:   margin,
		leverage: lev,
		lotSize:  req.LotSize,
		mark:     fill,
	}

	entry, _ := fill.Float64()
	m, _ := margin.Float64()
	p.log.InfoContext(ctx, "Paper order filled",
		logger.StringField("symbol", req.Symbol),
		logger.StringField("side", string(req.Side)),
		logger.FloatField("size", size),
		logger.FloatField("entry", entry),
		logger.FloatField("margin", m),
	)
	return &dto.PlacedOrder{
		Symbol:     req.Symbol,
		Side:       req.Side,
		EntryPrice: entry,
		Size:       size,
		Margin:     m,
		LotSize:    req.LotSize,
		MinSize:    req.MinSize,
	}, nil
}

func (p *PaperExecutor) PartialClose(ctx context.Context, symbol string, qty float64) error {
	p.mu.Lock()
	pos, ok := p.open[symbol]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", dto.ErrNoOpenPosition, symbol)
	}

	qty = utils.FloorToLot(qty, pos.lotSize)
	if qty <= 0 {
		return fmt.Errorf("%w: %v", dto.ErrInvalidQuantity, qty)
	}

	fill, err := p.price(ctx, symbol, 0)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok = p.open[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", dto.ErrNoOpenPosition, symbol)
	}
	closeQty := decimal.NewFromFloat(qty)
	if closeQty.GreaterThan(pos.size) {
		return fmt.Errorf("%w: close %v exceeds open size %s", dto.ErrInvalidQuantity, qty, pos.size.String())
	}
	p.settle(pos, closeQty, fill)
	if pos.size.IsZero() {
		delete(p.open, symbol)
	}
	return nil
}

func (p *PaperExecutor) CloseAll(ctx context.Context, symbol string) error {
	fill, err := p.price(ctx, symbol, 0)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.open[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", dto.ErrNoOpenPosition, symbol)
	}
	p.settle(pos, pos.size, fill)
	delete(p.open, symbol)
	return nil
}

// settle realizes pnl on qty and releases the matching share of margin. Caller holds mu.
func (p *PaperExecutor) settle(pos *paperPosition, qty, fill decimal.Decimal) {
	pnl := fill.Sub(pos.entry).Mul(qty)
	if pos.side == dto.SideShort {
		pnl = pnl.Neg()
	}
	released := pos.margin.Mul(qty).Div(pos.size)

	pos.margin = pos.margin.Sub(released)
	pos.size = pos.size.Sub(qty)
	pos.mark = fill
	p.balance = p.balance.Add(released).Add(pnl)
	p.realized = p.realized.Add(pnl)
}

func (p *PaperExecutor) ListOpenPositions(ctx context.Context) ([]dto.OpenPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]dto.OpenPosition, 0, len(p.open))
	for _, pos := range p.open {
		pnl := pos.mark.Sub(pos.entry).Mul(pos.size)
		if pos.side == dto.SideShort {
			pnl = pnl.Neg()
		}
		size, _ := pos.size.Float64()
		entry, _ := pos.entry.Float64()
		margin, _ := pos.margin.Float64()
		lev, _ := pos.leverage.Float64()
		upnl, _ := pnl.Float64()
		out = append(out, dto.OpenPosition{
			Symbol:        pos.symbol,
			Side:          pos.side,
			Size:          size,
			EntryPrice:    entry,
			Margin:        margin,
			Leverage:      lev,
			UnrealizedPnl: upnl,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// Balance returns free balance and realized pnl.
func (p *PaperExecutor) Balance() (float64, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, _ := p.balance.Float64()
	r, _ := p.realized.Float64()
	return b, r
}
