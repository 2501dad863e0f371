package data

import (
	"context"
	"fmt"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"finbot/internal/logger"
	"finbot/internal/types"
)

// KiteProvider fetches daily candles from the Kite Connect historical API.
// Instrument tokens are resolved once per process from the exchange's
// instrument dump and cached.
type KiteProvider struct {
	kc       *kiteconnect.Client
	exchange string
	tokens   map[string]int
}

// NewKiteProvider builds a provider bound to one exchange.
func NewKiteProvider(apiKey, accessToken, exchange string) *KiteProvider {
	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(accessToken)
	return &KiteProvider{kc: kc, exchange: exchange}
}

// History returns the ticker's daily bars for the date range.
func (p *KiteProvider) History(ctx context.Context, ticker string, from, to time.Time) ([]types.Candle, error) {
	token, err := p.resolveToken(ctx, ticker)
	if err != nil {
		return nil, err
	}

	bars, err := p.kc.GetHistoricalData(token, "day", from, to, false, false)
	if err != nil {
		return nil, fmt.Errorf("historical data for %s: %w", ticker, err)
	}

	out := make([]types.Candle, 0, len(bars))
	for _, b := range bars {
		out = append(out, types.Candle{
			Date:  b.Date.Time,
			Open:  b.Open,
			High:  b.High,
			Low:   b.Low,
			Close: b.Close,
			Vol:   float64(b.Volume),
		})
	}
	return out, nil
}

// resolveToken maps a trading symbol to its instrument token, loading the
// exchange instrument dump on first use.
func (p *KiteProvider) resolveToken(ctx context.Context, ticker string) (int, error) {
	if p.tokens == nil {
		instruments, err := p.kc.GetInstrumentsByExchange(p.exchange)
		if err != nil {
			return 0, fmt.Errorf("load %s instruments: %w", p.exchange, err)
		}
		p.tokens = make(map[string]int, len(instruments))
		for _, inst := range instruments {
			p.tokens[inst.Tradingsymbol] = inst.InstrumentToken
		}
		logger.Debug(ctx, "Instrument tokens loaded", "exchange", p.exchange, "count", len(p.tokens))
	}
	token, ok := p.tokens[ticker]
	if !ok {
		return 0, fmt.Errorf("no instrument token for %s on %s", ticker, p.exchange)
	}
	return token, nil
}
