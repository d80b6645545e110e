package model

// Channels shared with the external order subsystem.
const (
	OrderUpdateChannel = "order:update"
	NewHighChannel     = "newhigh:update"
)

// OrderEvent is an order-lifecycle notification emitted by the external
// order subsystem. The distribution server relays it verbatim.
type OrderEvent struct {
	Symbol   string  `json:"symbol"`
	State    string  `json:"state"` // accepted, filled, partially_filled, rejected, denied, triggered, canceled, expired
	Price    float64 `json:"price,omitempty"`
	Quantity float64 `json:"qty,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// OrderRequest is a command forwarded to the external order subsystem.
// AllocTag carries broker allocation metadata as an explicit field; the
// order subsystem ignores it when unset.
type OrderRequest struct {
	Symbol    string   `json:"symbol"`
	Side      string   `json:"side"` // "buy" or "sell"
	Qty       float64  `json:"qty"`
	OrderType string   `json:"orderType"` // MARKET, LIMIT, BRACKET
	Price     *float64 `json:"price,omitempty"`
	StopLoss  *float64 `json:"stopLoss,omitempty"`
	AllocTag  string   `json:"allocTag,omitempty"`
}

// Settings is the per-symbol behavior toggle mapping. Last write wins.
type Settings map[string]any

// SettingsKey returns the store key for a symbol's settings mapping.
func SettingsKey(symbol string) string { return "settings:" + symbol }
