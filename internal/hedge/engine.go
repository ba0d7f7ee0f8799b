package hedge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/vediex/book-api/internal/lpclient"
	"github.com/vediex/book-api/internal/provider"
	"github.com/vediex/book-api/internal/types"
)

// closeAttempts is deliberately 1: retrying a close against an LP that
// may have already filled the first request risks opening a fresh naked
// position, which is worse than the known state of a live hedge. A
// failed close leaves the record OPEN for manual teardown.
const closeAttempts = 1

// Engine opens and closes mirrored positions at liquidity providers and
// maintains the hedge ledger through every transition.
type Engine struct {
	db       *Database
	registry *provider.Registry
	client   *lpclient.Client
	sleep    func(time.Duration)
}

func NewEngine(gormDB *gorm.DB, registry *provider.Registry, client *lpclient.Client) *Engine {
	return &Engine{
		db:       NewDatabase(gormDB),
		registry: registry,
		client:   client,
		sleep:    time.Sleep,
	}
}

// Ledger exposes the engine's hedge ledger for read-side composition.
func (e *Engine) Ledger() *Database {
	return e.db
}

// PlaceHedgeTrade opens a mirrored position for the trade at a
// provider, retrying with linear backoff up to the provider's
// configured maximum. On a confirmed fill the trade's book
// classification becomes A_BOOK/HEDGED in the same logical step. On
// exhaustion the record ends FAILED and the trade is left untouched.
func (e *Engine) PlaceHedgeTrade(ctx context.Context, trade *types.Trade, adminID, providerCode string) (*Result, error) {
	logger := log.With().
		Str("trade_ref", trade.TradeID).
		Str("service", "hedge").
		Logger()

	config := e.registry.GetProvider(providerCode)
	if config == nil {
		return nil, ErrNoProviderConfigured
	}

	existing, err := e.db.GetActiveHedge(trade.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing hedge: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyHedged
	}

	lpSymbol := e.registry.MapSymbol(config, trade.Symbol)
	clientOrderID := fmt.Sprintf("VDX_%s_%d", trade.TradeID, time.Now().UnixMilli())

	orderData := map[string]interface{}{
		"symbol":        lpSymbol,
		"side":          trade.Side,
		"type":          "MARKET",
		"quantity":      trade.Quantity,
		"clientOrderId": clientOrderID,
	}

	lpTrade := &LPTrade{
		LPTradeID:        clientOrderID,
		InternalTradeID:  trade.ID,
		InternalTradeRef: trade.TradeID,
		LPProvider:       config.ProviderCode,
		Symbol:           trade.Symbol,
		Side:             trade.Side,
		Quantity:         trade.Quantity,
		OpenPrice:        trade.OpenPrice,
		Status:           StatusPending,
		SentAt:           time.Now(),
		CreatedBy:        adminID,
	}

	// The partial unique index is the real guard; the lookup above is
	// only the fast path. A concurrent placement loses here.
	if err := e.db.CreateHedge(lpTrade); err != nil {
		return nil, err
	}

	logger.Info().
		Str("lp_trade_id", lpTrade.LPTradeID).
		Str("provider", config.ProviderCode).
		Str("lp_symbol", lpSymbol).
		Msg("placing LP hedge order")

	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastError string
	for attempt := 1; attempt <= maxRetries; attempt++ {
		res := e.client.Request(ctx, config, http.MethodPost, config.PlaceOrderPath, orderData)

		if res.Success {
			now := time.Now()
			lpTrade.Status = StatusOpen
			lpTrade.LPOrderID = firstString(res.Data, "orderId", "id")
			lpTrade.LPOpenPrice = firstFloat(res.Data, "price", "executedPrice")
			lpTrade.LPCommission = firstFloat(res.Data, "commission")
			lpTrade.OpenedAt = &now
			lpTrade.LPOpenResponse = res.Raw
			if err := e.db.SaveHedge(lpTrade); err != nil {
				return nil, fmt.Errorf("failed to persist opened hedge: %w", err)
			}

			trade.BookType = types.BookA
			trade.LPProvider = config.ProviderCode
			trade.LPTradeID = lpTrade.LPTradeID
			trade.LPStatus = types.LPStatusHedged
			trade.BookAssignedAt = &now
			trade.BookAssignedBy = adminID
			if err := e.db.SaveTrade(trade); err != nil {
				return nil, fmt.Errorf("failed to persist trade book assignment: %w", err)
			}

			e.registry.RecordSuccess(config.ProviderCode)

			logger.Info().
				Str("lp_order_id", lpTrade.LPOrderID).
				Float64("lp_open_price", lpTrade.LPOpenPrice).
				Int("attempt", attempt).
				Msg("LP hedge opened")

			return &Result{LPTrade: lpTrade, LPResponse: res.Data}, nil
		}

		lastError = res.ErrorMessage()
		lpTrade.RetryCount = attempt
		if err := e.db.SaveHedge(lpTrade); err != nil {
			logger.Error().Err(err).Msg("failed to persist hedge retry count")
		}

		logger.Warn().
			Int("attempt", attempt).
			Int("max_retries", maxRetries).
			Str("lp_error", lastError).
			Msg("LP hedge attempt failed")

		if attempt < maxRetries {
			e.sleep(time.Duration(attempt) * time.Second)
		}
	}

	lpTrade.Status = StatusFailed
	lpTrade.ErrorMessage = lastError
	if err := e.db.SaveHedge(lpTrade); err != nil {
		logger.Error().Err(err).Msg("failed to persist failed hedge record")
	}

	e.registry.RecordFailure(config.ProviderCode, lastError)

	logger.Error().
		Int("attempts", maxRetries).
		Str("lp_error", lastError).
		Msg("LP hedge exhausted all retries")

	return nil, &ExhaustedError{Attempts: maxRetries, LastError: lastError}
}

// CloseHedgeTrade closes the trade's OPEN hedge at the provider that
// holds the position. Closes are single-shot (see closeAttempts); on
// failure the record stays OPEN with the error retained.
func (e *Engine) CloseHedgeTrade(ctx context.Context, trade *types.Trade, adminID string) (*Result, error) {
	logger := log.With().
		Str("trade_ref", trade.TradeID).
		Str("service", "hedge").
		Logger()

	lpTrade, err := e.db.GetOpenHedge(trade.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open hedge: %w", err)
	}
	if lpTrade == nil {
		return nil, ErrNoOpenHedge
	}

	// Close must target the provider the hedge was opened on, not the
	// current default.
	config := e.registry.GetProvider(lpTrade.LPProvider)
	if config == nil {
		return nil, ErrProviderNotFound
	}

	closeData := map[string]interface{}{
		"orderId":  lpTrade.LPOrderID,
		"symbol":   e.registry.MapSymbol(config, trade.Symbol),
		"quantity": lpTrade.Quantity,
	}

	logger.Info().
		Str("lp_trade_id", lpTrade.LPTradeID).
		Str("provider", config.ProviderCode).
		Msg("closing LP hedge order")

	res := e.client.Request(ctx, config, http.MethodPost, config.CloseOrderPath, closeData)
	if !res.Success {
		lastError := res.ErrorMessage()
		lpTrade.ErrorMessage = lastError
		if err := e.db.SaveHedge(lpTrade); err != nil {
			logger.Error().Err(err).Msg("failed to persist close error on hedge record")
		}

		logger.Error().Str("lp_error", lastError).Msg("LP hedge close failed, position still live")
		return nil, &CloseError{LastError: lastError}
	}

	now := time.Now()
	lpTrade.Status = StatusClosed
	lpTrade.LPClosePrice = firstFloat(res.Data, "price", "executedPrice")
	lpTrade.LPPnl = firstFloat(res.Data, "pnl")
	lpTrade.LPSwap = firstFloat(res.Data, "swap")
	lpTrade.ClosedAt = &now
	lpTrade.ClosedBy = adminID
	lpTrade.LPCloseResponse = res.Raw
	if err := e.db.SaveHedge(lpTrade); err != nil {
		return nil, fmt.Errorf("failed to persist closed hedge: %w", err)
	}

	trade.LPStatus = types.LPStatusClosed
	if err := e.db.SaveTrade(trade); err != nil {
		return nil, fmt.Errorf("failed to persist trade hedge status: %w", err)
	}

	logger.Info().
		Float64("lp_close_price", lpTrade.LPClosePrice).
		Float64("lp_pnl", lpTrade.LPPnl).
		Msg("LP hedge closed")

	return &Result{LPTrade: lpTrade, LPResponse: res.Data}, nil
}

// GetHedgeStatus returns a ledger record together with the provider's
// live view of the order when it can be fetched. Provider errors only
// drop the live data, never the record.
func (e *Engine) GetHedgeStatus(ctx context.Context, lpTradeID string) (*LPTrade, map[string]interface{}, error) {
	lpTrade, err := e.db.GetHedgeByLPTradeID(lpTradeID)
	if err != nil {
		return nil, nil, err
	}
	if lpTrade == nil {
		return nil, nil, ErrHedgeNotFound
	}

	config := e.registry.GetProvider(lpTrade.LPProvider)
	if config == nil || lpTrade.LPOrderID == "" {
		return lpTrade, nil, nil
	}

	path := strings.ReplaceAll(config.GetOrderPath, "{orderId}", lpTrade.LPOrderID)
	res := e.client.Request(ctx, config, http.MethodGet, path, nil)
	if !res.Success {
		log.Warn().
			Str("lp_trade_id", lpTradeID).
			Str("lp_error", res.ErrorMessage()).
			Msg("could not fetch live LP order status")
		return lpTrade, nil, nil
	}

	return lpTrade, res.Data, nil
}

// Cancel moves a PENDING or FAILED record to the administrator-only
// CANCELLED terminal state. OPEN hedges must be closed, not cancelled.
func (e *Engine) Cancel(lpTradeID, adminID string) (*LPTrade, error) {
	lpTrade, err := e.db.GetHedgeByLPTradeID(lpTradeID)
	if err != nil {
		return nil, err
	}
	if lpTrade == nil {
		return nil, ErrHedgeNotFound
	}
	if lpTrade.Status != StatusPending && lpTrade.Status != StatusFailed {
		return nil, ErrNotCancellable
	}

	now := time.Now()
	lpTrade.Status = StatusCancelled
	lpTrade.ClosedAt = &now
	lpTrade.ClosedBy = adminID
	if err := e.db.SaveHedge(lpTrade); err != nil {
		return nil, err
	}

	log.Info().
		Str("lp_trade_id", lpTradeID).
		Str("admin_id", adminID).
		Msg("LP hedge cancelled by administrator")

	return lpTrade, nil
}

func firstString(data map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
		// Some providers return numeric order ids
		if v, ok := data[key].(float64); ok {
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func firstFloat(data map[string]interface{}, keys ...string) float64 {
	for _, key := range keys {
		if v, ok := data[key].(float64); ok {
			return v
		}
	}
	return 0
}
