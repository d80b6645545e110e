package model

// Position is the current position record for one symbol. It is written by
// the external order subsystem (or manually via the distribution server) and
// only read everywhere else. Closed=true means "clear display, stop tracking".
type Position struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"` // "long" or "short"
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"entryPrice"`
	StopLoss      float64 `json:"stopLoss,omitempty"`
	UnrealizedPnL float64 `json:"pnl"`
	Closed        bool    `json:"closed,omitempty"`
}

// PositionKey returns the store key for a symbol's position document.
func PositionKey(symbol string) string { return "position:" + symbol }

// PositionChannel returns the publish channel for position changes.
func PositionChannel(symbol string) string { return "position:" + symbol }

// MarkToMarket recomputes UnrealizedPnL against the given last price.
func (p *Position) MarkToMarket(lastPrice float64) {
	diff := lastPrice - p.AvgEntryPrice
	if p.Side == "short" {
		diff = -diff
	}
	p.UnrealizedPnL = diff * p.Quantity
}
