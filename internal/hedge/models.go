package hedge

import (
	"time"

	"gorm.io/gorm"
)

// Hedge record lifecycle states. PENDING -> OPEN -> CLOSED is the happy
// path, PENDING -> FAILED the exhausted one. CANCELLED is reachable
// only through an explicit administrator action.
const (
	StatusPending   = "PENDING"
	StatusOpen      = "OPEN"
	StatusClosed    = "CLOSED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// LPTrade is one hedge attempt against a liquidity provider. Records
// are financial history: they are never deleted, only transitioned.
// A partial unique index on internal_trade_id (status PENDING or OPEN)
// enforces at most one active hedge per trade at the storage level.
type LPTrade struct {
	gorm.Model       `json:"-"`
	LPTradeID        string `gorm:"uniqueIndex" json:"lp_trade_id"` // our clientOrderId at the provider
	InternalTradeID  uint   `gorm:"index" json:"internal_trade_id"`
	InternalTradeRef string `gorm:"index" json:"internal_trade_ref"`

	LPProvider string `json:"lp_provider"`
	LPOrderID  string `json:"lp_order_id,omitempty"`

	// Mirrored trade economics
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"` // BUY or SELL
	Quantity  float64 `json:"quantity"`
	OpenPrice float64 `json:"open_price"`

	// Provider-side economics
	LPOpenPrice  float64 `json:"lp_open_price,omitempty"`
	LPClosePrice float64 `json:"lp_close_price,omitempty"`
	LPCommission float64 `json:"lp_commission,omitempty"`
	LPSwap       float64 `json:"lp_swap,omitempty"`
	LPPnl        float64 `json:"lp_pnl,omitempty"`

	Status       string `gorm:"index;default:PENDING" json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count"`

	SentAt   time.Time  `json:"sent_at"`
	OpenedAt *time.Time `json:"opened_at,omitempty"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	CreatedBy string `json:"created_by"`
	ClosedBy  string `json:"closed_by,omitempty"`

	// Raw provider payloads, kept verbatim for forensic replay
	LPOpenResponse  string `json:"-"`
	LPCloseResponse string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the record occupies the one-active-hedge slot
// for its trade.
func (t *LPTrade) Active() bool {
	return t.Status == StatusPending || t.Status == StatusOpen
}

// Result bundles the ledger record with the provider's last response
// payload.
type Result struct {
	LPTrade    *LPTrade               `json:"lp_trade"`
	LPResponse map[string]interface{} `json:"lp_response,omitempty"`
}

// StatusCount is one row of the hedge-state aggregate.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}
