package books

import (
	"errors"

	"github.com/vediex/book-api/internal/audit"
	"github.com/vediex/book-api/internal/hedge"
	"github.com/vediex/book-api/internal/types"
)

var (
	// ErrTradeNotFound means the referenced trade does not exist.
	ErrTradeNotFound = errors.New("trade not found")

	// ErrTradeNotOpen means book routing was requested for a trade that
	// is no longer open.
	ErrTradeNotOpen = errors.New("trade is not open")

	// ErrAlreadyABook guards against re-hedging a trade that is already
	// A-Book with a live hedge.
	ErrAlreadyABook = errors.New("trade is already in A-Book")

	// ErrAlreadyBBook guards against a redundant B-Book move.
	ErrAlreadyBBook = errors.New("trade is already in B-Book")
)

// TradeFilter narrows the running-trades listing.
type TradeFilter struct {
	BookType string
	Symbol   string
	UserID   string
	Page     int
	Limit    int
}

// BookCounts aggregates open trades per book classification.
type BookCounts struct {
	Unassigned int64 `json:"UNASSIGNED"`
	ABook      int64 `json:"A_BOOK"`
	BBook      int64 `json:"B_BOOK"`
	Total      int64 `json:"total"`
}

// BookStat is one row of the per-book exposure aggregate.
type BookStat struct {
	BookType    string  `json:"book_type"`
	Count       int64   `json:"count"`
	TotalVolume float64 `json:"total_volume"`
	TotalMargin float64 `json:"total_margin"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// TradeDetail is the full admin view of one trade: the trade itself,
// its most recent hedge record, and the tail of its audit trail.
type TradeDetail struct {
	Trade     *types.Trade   `json:"trade"`
	LPTrade   *hedge.LPTrade `json:"lp_trade,omitempty"`
	AuditLogs []audit.Entry  `json:"audit_logs"`
}

// Stats is the aggregate book/hedge dashboard payload.
type Stats struct {
	BookStats     []BookStat          `json:"book_stats"`
	LPStats       []hedge.StatusCount `json:"lp_stats"`
	RecentActions []audit.Entry       `json:"recent_actions"`
}
