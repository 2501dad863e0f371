// Package portfolio owns the money: cash, open positions, the append-only trade
// log, and the equity log. Every mutation goes through Buy/Sell/MarkToMarket so
// the cost model is applied in exactly one place.
package portfolio

import (
	"sort"
	"time"

	"finbot/internal/types"
)

// Costs groups the friction parameters baked into every fill.
type Costs struct {
	FeeBps      float64
	SlippageBps float64
	StopPct     float64
	TargetPct   float64
}

// Portfolio is the single source of truth for simulated money. A run mutates it
// strictly sequentially (one date at a time), so there is no locking.
type Portfolio struct {
	cash      float64
	costs     Costs
	positions map[string]types.Position
	trades    []types.Trade
	equity    []types.EquitySnapshot
}

// New returns an empty ledger holding the starting cash.
func New(startingCash float64, costs Costs) *Portfolio {
	return &Portfolio{
		cash:      startingCash,
		costs:     costs,
		positions: make(map[string]types.Position),
	}
}

// Cash returns the free cash balance. Never negative.
func (p *Portfolio) Cash() float64 { return p.cash }

// IsLong reports whether a position is open for the ticker. Posture is derived
// from the position map, so the two can never disagree.
func (p *Portfolio) IsLong(ticker string) bool {
	_, ok := p.positions[ticker]
	return ok
}

// Position returns the open position for a ticker, if any.
func (p *Portfolio) Position(ticker string) (types.Position, bool) {
	pos, ok := p.positions[ticker]
	return pos, ok
}

// Positions returns the open positions sorted by ticker.
func (p *Portfolio) Positions() []types.Position {
	out := make([]types.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// OpenTickers returns the tickers with open positions, sorted.
func (p *Portfolio) OpenTickers() []string {
	out := make([]string, 0, len(p.positions))
	for t := range p.positions {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Trades returns a copy of the trade log.
func (p *Portfolio) Trades() []types.Trade {
	out := make([]types.Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

// Equity returns a copy of the equity log.
func (p *Portfolio) Equity() []types.EquitySnapshot {
	out := make([]types.EquitySnapshot, len(p.equity))
	copy(out, p.equity)
	return out
}

// fillPrice applies slippage directionally against the trader.
func (p *Portfolio) fillPrice(raw float64, side types.Side) float64 {
	slip := p.costs.SlippageBps / 10000.0
	if side == types.SideBuy {
		return raw * (1 + slip)
	}
	return raw * (1 - slip)
}

func (p *Portfolio) fee(notional float64) float64 {
	if notional < 0 {
		notional = -notional
	}
	return notional * p.costs.FeeBps / 10000.0
}

// Buy converts up to cashToUse into whole shares of ticker at the slippage-
// adjusted price. A zero-share sizing or insufficient cash is a silent no-op.
// On success the position's stop and target are fixed off the fill price and the
// trade is appended to the log. Returns whether a fill happened.
func (p *Portfolio) Buy(ticker string, rawPrice float64, date time.Time, cashToUse float64, reason types.Reason) bool {
	if cashToUse <= 0 || rawPrice <= 0 {
		return false
	}
	px := p.fillPrice(rawPrice, types.SideBuy)
	shares := int(cashToUse / px)
	if shares <= 0 {
		return false
	}
	notional := float64(shares) * px
	fee := p.fee(notional)
	if notional+fee > p.cash {
		return false
	}

	p.cash -= notional + fee
	pos := types.Position{Ticker: ticker, Shares: shares, EntryPrice: px}
	if p.costs.StopPct > 0 {
		pos.StopLoss = px * (1 - p.costs.StopPct)
	}
	if p.costs.TargetPct > 0 {
		pos.Target = px * (1 + p.costs.TargetPct)
	}
	p.positions[ticker] = pos
	p.trades = append(p.trades, types.Trade{
		Date:   date,
		Ticker: ticker,
		Side:   types.SideBuy,
		Price:  px,
		Shares: shares,
		Fee:    fee,
		Reason: reason,
	})
	return true
}

// Sell closes the ticker's whole position at the slippage-adjusted price,
// crediting notional minus fee. No position means no-op. No partial sells.
func (p *Portfolio) Sell(ticker string, rawPrice float64, date time.Time, reason types.Reason) bool {
	pos, ok := p.positions[ticker]
	if !ok || pos.Shares <= 0 {
		return false
	}
	px := p.fillPrice(rawPrice, types.SideSell)
	notional := float64(pos.Shares) * px
	fee := p.fee(notional)

	p.cash += notional - fee
	delete(p.positions, ticker)
	p.trades = append(p.trades, types.Trade{
		Date:   date,
		Ticker: ticker,
		Side:   types.SideSell,
		Price:  px,
		Shares: pos.Shares,
		Fee:    fee,
		Reason: reason,
	})
	return true
}

// MarkToMarket appends exactly one equity snapshot valuing open positions at the
// supplied close prices. A ticker missing from closes contributes zero value for
// the day. Append-only: calling twice for one date records two snapshots.
func (p *Portfolio) MarkToMarket(date time.Time, closes map[string]float64) {
	var posValue float64
	for ticker, pos := range p.positions {
		if px, ok := closes[ticker]; ok && pos.Shares > 0 {
			posValue += float64(pos.Shares) * px
		}
	}
	p.equity = append(p.equity, types.EquitySnapshot{
		Date:     date,
		Equity:   p.cash + posValue,
		Cash:     p.cash,
		PosValue: posValue,
	})
}

// TotalValue is the most recent marked equity, or plain cash before any marking.
func (p *Portfolio) TotalValue() float64 {
	if len(p.equity) == 0 {
		return p.cash
	}
	return p.equity[len(p.equity)-1].Equity
}
