package interfaces

import (
	"context"
	"time"
)

// Notifier delivers a buy recommendation list for a trade date to the user.
// The list arrives sorted and deduplicated; an empty list still sends, as a
// "no signals today" message.
type Notifier interface {
	SendBuyList(ctx context.Context, tickers []string, tradeDate time.Time) error
}
