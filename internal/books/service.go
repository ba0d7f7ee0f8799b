package books

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/vediex/book-api/internal/audit"
	"github.com/vediex/book-api/internal/hedge"
	"github.com/vediex/book-api/internal/types"
)

// Service is the book router: it decides per trade whether risk stays
// in-house (B-Book) or is offloaded to a liquidity provider (A-Book),
// drives the hedge engine accordingly, and appends to the audit trail
// on every attempt.
type Service struct {
	db     *Database
	engine *hedge.Engine
	ledger *hedge.Database
	trail  *audit.Trail
}

func NewService(gormDB *gorm.DB, engine *hedge.Engine, trail *audit.Trail) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		engine: engine,
		ledger: engine.Ledger(),
		trail:  trail,
	}
}

// SendToABook routes a trade to the A-Book by opening an LP hedge. An
// audit entry is appended whether the hedge succeeds or fails; that is
// the load-bearing guarantee of this subsystem. On failure the trade's
// book classification is untouched.
func (s *Service) SendToABook(ctx context.Context, tradeRef, providerCode, notes string, admin types.AdminContext) (*types.Trade, *hedge.LPTrade, error) {
	logger := log.With().
		Str("trade_ref", tradeRef).
		Str("admin_id", admin.AdminID).
		Str("service", "books").
		Logger()

	trade, err := s.db.GetTradeByRef(tradeRef)
	if err != nil {
		return nil, nil, err
	}
	if trade == nil {
		return nil, nil, ErrTradeNotFound
	}
	if trade.Status != types.TradeOpen {
		return nil, nil, ErrTradeNotOpen
	}
	if trade.BookType == types.BookA && trade.LPStatus == types.LPStatusHedged {
		return nil, nil, ErrAlreadyABook
	}

	entry := s.newEntry(trade, admin, notes)
	entry.Action = audit.ActionSendToABook
	entry.NewBookType = types.BookA

	logger.Info().Str("previous_book", entry.PreviousBookType).Msg("sending trade to A-Book")

	result, err := s.engine.PlaceHedgeTrade(ctx, trade, admin.AdminID, providerCode)
	if err != nil {
		entry.Action = audit.ActionHedgeFailed
		entry.Success = false
		entry.ErrorDetails = err.Error()
		if appendErr := s.trail.Append(entry); appendErr != nil {
			logger.Error().Err(appendErr).Msg("audit append failed on hedge failure path")
		}

		logger.Error().Err(err).Msg("failed to send trade to A-Book")
		return nil, nil, err
	}

	entry.LPProvider = result.LPTrade.LPProvider
	entry.LPTradeID = result.LPTrade.LPTradeID
	entry.LPStatus = types.LPStatusHedged
	entry.Success = true
	if appendErr := s.trail.Append(entry); appendErr != nil {
		logger.Error().Err(appendErr).Msg("audit append failed on hedge success path")
	}

	logger.Info().Str("lp_trade_id", result.LPTrade.LPTradeID).Msg("trade sent to A-Book")
	return trade, result.LPTrade, nil
}

// MoveToBBook reassigns a trade to the B-Book. If the trade carries a
// live hedge the engine attempts to close it first, but a failed close
// does not block the move: the house accepts the trade's risk and the
// close error is retained in the audit entry for manual reconciliation.
func (s *Service) MoveToBBook(ctx context.Context, tradeRef, notes string, admin types.AdminContext) (*types.Trade, error) {
	logger := log.With().
		Str("trade_ref", tradeRef).
		Str("admin_id", admin.AdminID).
		Str("service", "books").
		Logger()

	trade, err := s.db.GetTradeByRef(tradeRef)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, ErrTradeNotFound
	}
	if trade.Status != types.TradeOpen {
		return nil, ErrTradeNotOpen
	}
	if trade.BookType == types.BookB {
		return nil, ErrAlreadyBBook
	}

	entry := s.newEntry(trade, admin, notes)
	entry.Action = audit.ActionMoveToBBook
	entry.NewBookType = types.BookB

	if trade.BookType == types.BookA && trade.LPStatus == types.LPStatusHedged {
		if _, closeErr := s.engine.CloseHedgeTrade(ctx, trade, admin.AdminID); closeErr != nil {
			// Accepted risk: the book flip proceeds; the hedge record
			// stays OPEN and the error is preserved for reconciliation.
			logger.Error().Err(closeErr).Msg("LP hedge close failed during B-Book move, continuing")
			entry.ErrorDetails = closeErr.Error()
		}
	}

	now := time.Now()
	trade.BookType = types.BookB
	trade.BookAssignedAt = &now
	trade.BookAssignedBy = admin.AdminID
	if err := s.db.SaveTrade(trade); err != nil {
		return nil, err
	}

	entry.Success = true
	if appendErr := s.trail.Append(entry); appendErr != nil {
		logger.Error().Err(appendErr).Msg("audit append failed on B-Book move")
	}

	logger.Info().Msg("trade moved to B-Book")
	return trade, nil
}

// ListRunningTrades returns one page of open trades plus the aggregate
// per-book counts.
func (s *Service) ListRunningTrades(filter TradeFilter) ([]types.Trade, Pagination, BookCounts, error) {
	trades, total, err := s.db.ListOpenTrades(filter)
	if err != nil {
		return nil, Pagination{}, BookCounts{}, err
	}

	counts, err := s.db.BookCounts()
	if err != nil {
		return nil, Pagination{}, BookCounts{}, err
	}

	return trades, paginate(filter.Page, filter.Limit, total), counts, nil
}

// GetTradeDetail returns the trade, its latest hedge record, and the
// last entries of its audit trail.
func (s *Service) GetTradeDetail(tradeRef string) (*TradeDetail, error) {
	trade, err := s.db.GetTradeByRef(tradeRef)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, ErrTradeNotFound
	}

	lpTrade, err := s.ledger.GetLatestHedge(trade.ID)
	if err != nil {
		return nil, err
	}

	auditLogs, err := s.trail.RecentByTrade(trade.ID, 20)
	if err != nil {
		return nil, err
	}

	return &TradeDetail{Trade: trade, LPTrade: lpTrade, AuditLogs: auditLogs}, nil
}

// GetStats aggregates book exposure, hedge-state counts and recent
// routing actions.
func (s *Service) GetStats() (*Stats, error) {
	bookStats, err := s.db.BookStats()
	if err != nil {
		return nil, err
	}

	lpStats, err := s.ledger.CountByStatus()
	if err != nil {
		return nil, err
	}

	recent, err := s.trail.Recent(10)
	if err != nil {
		return nil, err
	}

	return &Stats{BookStats: bookStats, LPStats: lpStats, RecentActions: recent}, nil
}

// newEntry builds the audit entry shell before any hedge work starts,
// so the pre-action snapshot survives whatever happens next.
func (s *Service) newEntry(trade *types.Trade, admin types.AdminContext, notes string) *audit.Entry {
	snapshot := trade.Snapshot()
	return &audit.Entry{
		TradeID:          trade.ID,
		TradeRef:         trade.TradeID,
		UserID:           trade.UserID,
		PreviousBookType: trade.BookType,
		Symbol:           snapshot.Symbol,
		Side:             snapshot.Side,
		Quantity:         snapshot.Quantity,
		OpenPrice:        snapshot.OpenPrice,
		CurrentPrice:     snapshot.CurrentPrice,
		FloatingPnl:      snapshot.FloatingPnl,
		PerformedBy:      admin.AdminID,
		PerformedByEmail: admin.AdminEmail,
		IPAddress:        admin.IPAddress,
		UserAgent:        admin.UserAgent,
		Notes:            notes,
	}
}

func paginate(page, limit int, total int64) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
