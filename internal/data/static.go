// Package data supplies daily price history: a Kite Connect provider for live
// fetches, a CSV cache decorator, and an in-memory static provider for tests
// and offline runs.
package data

import (
	"context"
	"fmt"
	"time"

	"finbot/internal/types"
)

// StaticProvider serves candles from a fixed in-memory map.
type StaticProvider struct {
	bars map[string][]types.Candle
}

// NewStaticProvider wraps pre-loaded per-ticker candle series.
func NewStaticProvider(bars map[string][]types.Candle) *StaticProvider {
	return &StaticProvider{bars: bars}
}

// History returns the stored candles clipped to [from, to].
func (p *StaticProvider) History(ctx context.Context, ticker string, from, to time.Time) ([]types.Candle, error) {
	series, ok := p.bars[ticker]
	if !ok {
		return nil, fmt.Errorf("no data for %s", ticker)
	}
	var out []types.Candle
	for _, c := range series {
		if c.Date.Before(from) || c.Date.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
