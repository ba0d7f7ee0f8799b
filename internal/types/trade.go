package types

import (
	"time"

	"gorm.io/gorm"
)

// Book classifications for a trade
const (
	BookUnassigned = "UNASSIGNED"
	BookA          = "A_BOOK"
	BookB          = "B_BOOK"
)

// Trade sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Trade lifecycle statuses
const (
	TradeOpen   = "OPEN"
	TradeClosed = "CLOSED"
)

// LP hedge statuses carried on the trade itself
const (
	LPStatusHedged = "HEDGED"
	LPStatusClosed = "CLOSED"
)

// Trade is the platform trade entity. It is owned by the wider trading
// system; this service only mutates its book classification and hedge
// linkage fields.
type Trade struct {
	gorm.Model     `json:"-"`
	TradeID        string     `gorm:"uniqueIndex" json:"trade_id"`
	UserID         string     `gorm:"index" json:"user_id"`
	UserEmail      string     `json:"user_email"`
	Symbol         string     `json:"symbol"`
	Side           string     `json:"side"` // BUY or SELL
	Quantity       float64    `json:"quantity"`
	OpenPrice      float64    `json:"open_price"`
	CurrentPrice   float64    `json:"current_price"`
	FloatingPnl    float64    `json:"floating_pnl"`
	MarginUsed     float64    `json:"margin_used"`
	Status         string     `json:"status"` // OPEN, CLOSED
	BookType       string     `gorm:"default:UNASSIGNED" json:"book_type"`
	LPProvider     string     `json:"lp_provider,omitempty"`
	LPTradeID      string     `json:"lp_trade_id,omitempty"`
	LPStatus       string     `json:"lp_status,omitempty"`
	BookAssignedAt *time.Time `json:"book_assigned_at,omitempty"`
	BookAssignedBy string     `json:"book_assigned_by,omitempty"`
	OpenedAt       time.Time  `json:"opened_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Snapshot captures trade economics at the moment of a book-routing
// action, for the audit trail.
type Snapshot struct {
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`
	Quantity     float64 `json:"quantity"`
	OpenPrice    float64 `json:"open_price"`
	CurrentPrice float64 `json:"current_price"`
	FloatingPnl  float64 `json:"floating_pnl"`
}

// Snapshot returns the trade's current economics.
func (t *Trade) Snapshot() Snapshot {
	return Snapshot{
		Symbol:       t.Symbol,
		Side:         t.Side,
		Quantity:     t.Quantity,
		OpenPrice:    t.OpenPrice,
		CurrentPrice: t.CurrentPrice,
		FloatingPnl:  t.FloatingPnl,
	}
}

// AdminContext identifies the administrator performing a book-routing
// action, plus the request metadata recorded in the audit trail.
type AdminContext struct {
	AdminID    string `json:"admin_id"`
	AdminEmail string `json:"admin_email"`
	IPAddress  string `json:"ip_address"`
	UserAgent  string `json:"user_agent"`
}
