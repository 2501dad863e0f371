package interfaces

import (
	"context"
	"time"

	"finbot/internal/types"
)

// PriceProvider supplies time-ordered daily bars for one instrument. A gap in
// the returned series means "no data for that date" and is not an error.
type PriceProvider interface {
	History(ctx context.Context, ticker string, from, to time.Time) ([]types.Candle, error)
}
