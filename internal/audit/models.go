package audit

import (
	"time"

	"gorm.io/gorm"
)

// Book-routing actions recorded in the trail
const (
	ActionSendToABook     = "SEND_TO_A_BOOK"
	ActionMoveToBBook     = "MOVE_TO_B_BOOK"
	ActionHedgeOpened     = "LP_HEDGE_OPENED"
	ActionHedgeClosed     = "LP_HEDGE_CLOSED"
	ActionHedgeFailed     = "LP_HEDGE_FAILED"
	ActionBookTypeChanged = "BOOK_TYPE_CHANGED"
)

// Entry is one immutable book-routing audit record. Entries are written
// for every routing decision attempt, success or failure, and the trail
// must be reconstructable from them alone.
type Entry struct {
	gorm.Model `json:"-"`
	AuditID    string `gorm:"uniqueIndex" json:"audit_id"`

	TradeID  uint   `gorm:"index" json:"trade_id"`
	TradeRef string `json:"trade_ref"`
	UserID   string `gorm:"index" json:"user_id"`

	Action           string `gorm:"index" json:"action"`
	PreviousBookType string `json:"previous_book_type"`
	NewBookType      string `json:"new_book_type"`

	LPProvider string `json:"lp_provider,omitempty"`
	LPTradeID  string `json:"lp_trade_id,omitempty"`
	LPStatus   string `json:"lp_status,omitempty"`

	// Trade snapshot at the moment of the action
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`
	Quantity     float64 `json:"quantity"`
	OpenPrice    float64 `json:"open_price"`
	CurrentPrice float64 `json:"current_price"`
	FloatingPnl  float64 `json:"floating_pnl"`

	PerformedBy      string `gorm:"index" json:"performed_by"`
	PerformedByEmail string `json:"performed_by_email"`

	IPAddress    string `json:"ip_address,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	Notes        string `json:"notes,omitempty"`
	ErrorDetails string `json:"error_details,omitempty"`

	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows an audit trail query.
type Filter struct {
	TradeID uint
	UserID  string
	Action  string
	Page    int
	Limit   int
}
