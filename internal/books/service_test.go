package books

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vediex/book-api/internal/audit"
	"github.com/vediex/book-api/internal/database/migrations"
	"github.com/vediex/book-api/internal/hedge"
	"github.com/vediex/book-api/internal/lpclient"
	"github.com/vediex/book-api/internal/provider"
	"github.com/vediex/book-api/internal/types"
	"github.com/vediex/book-api/internal/vault"
)

type serviceFixture struct {
	db        *gorm.DB
	service   *Service
	trail     *audit.Trail
	failPlace bool
	failClose bool
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Trade{}, &provider.LPProvider{}, &hedge.LPTrade{}, &audit.Entry{}))
	require.NoError(t, migrations.AddActiveHedgeGuard(db))

	f := &serviceFixture{db: db}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/order":
			if f.failPlace {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "no liquidity"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"orderId": "LP-1", "price": 100.5})
		case "/order/close":
			if f.failClose {
				w.WriteHeader(http.StatusBadGateway)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "venue down"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"price": 101.0, "pnl": 75.0})
		}
	}))
	t.Cleanup(server.Close)

	v := vault.New("test-key")
	// MaxRetries 1 keeps failure-path tests free of backoff sleeps
	require.NoError(t, db.Create(&provider.LPProvider{
		ProviderName:      "Test LP",
		ProviderCode:      "TESTLP",
		APIBaseURL:        server.URL,
		PlaceOrderPath:    "/order",
		CloseOrderPath:    "/order/close",
		GetOrderPath:      "/order/{orderId}",
		IsActive:          true,
		IsPrimary:         true,
		MaxRetries:        1,
		TimeoutMs:         5000,
		RequestsPerSecond: 100,
	}).Error)

	registry := provider.NewRegistry(db, v)
	require.NoError(t, registry.Refresh())

	engine := hedge.NewEngine(db, registry, lpclient.New(registry))
	f.trail = audit.NewTrail(db)
	f.service = NewService(db, engine, f.trail)
	return f
}

func (f *serviceFixture) createTrade(t *testing.T, ref string) *types.Trade {
	t.Helper()
	trade := &types.Trade{
		TradeID:      ref,
		UserID:       "USR_1",
		UserEmail:    "user@example.com",
		Symbol:       "EURUSD",
		Side:         types.SideBuy,
		Quantity:     2.0,
		OpenPrice:    1.1,
		CurrentPrice: 1.105,
		FloatingPnl:  10.0,
		MarginUsed:   220.0,
		Status:       types.TradeOpen,
		OpenedAt:     time.Now(),
	}
	require.NoError(t, f.db.Create(trade).Error)
	return trade
}

func (f *serviceFixture) auditEntries(t *testing.T, tradeID uint) []audit.Entry {
	t.Helper()
	entries, _, err := f.trail.Query(audit.Filter{TradeID: tradeID})
	require.NoError(t, err)
	return entries
}

var testAdmin = types.AdminContext{
	AdminID:    "ADMIN_1",
	AdminEmail: "admin@example.com",
	IPAddress:  "10.0.0.1",
	UserAgent:  "test-agent",
}

func TestSendToABookSuccess(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createTrade(t, "TRD_100")

	trade, lpTrade, err := f.service.SendToABook(context.Background(), "TRD_100", "", "hedging out", testAdmin)
	require.NoError(t, err)
	require.NotNil(t, trade)
	require.NotNil(t, lpTrade)

	assert.Equal(t, types.BookA, trade.BookType)
	assert.Equal(t, types.LPStatusHedged, trade.LPStatus)
	assert.Equal(t, hedge.StatusOpen, lpTrade.Status)

	// Exactly one audit entry, carrying the pre-action snapshot
	entries := f.auditEntries(t, created.ID)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, audit.ActionSendToABook, entry.Action)
	assert.True(t, entry.Success)
	assert.Equal(t, types.BookUnassigned, entry.PreviousBookType)
	assert.Equal(t, types.BookA, entry.NewBookType)
	assert.Equal(t, lpTrade.LPTradeID, entry.LPTradeID)
	assert.Equal(t, "TESTLP", entry.LPProvider)
	assert.Equal(t, "EURUSD", entry.Symbol)
	assert.Equal(t, 2.0, entry.Quantity)
	assert.Equal(t, "ADMIN_1", entry.PerformedBy)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)
	assert.Equal(t, "hedging out", entry.Notes)
}

func TestSendToABookHedgeFailureLeavesTradeUntouched(t *testing.T) {
	f := newServiceFixture(t)
	f.failPlace = true
	created := f.createTrade(t, "TRD_101")

	_, _, err := f.service.SendToABook(context.Background(), "TRD_101", "", "", testAdmin)
	require.Error(t, err)

	var exhausted *hedge.ExhaustedError
	require.ErrorAs(t, err, &exhausted)

	// Trade classification unchanged
	var reloaded types.Trade
	require.NoError(t, f.db.First(&reloaded, created.ID).Error)
	assert.Equal(t, types.BookUnassigned, reloaded.BookType)
	assert.Empty(t, reloaded.LPStatus)

	// The failure is still audited: exactly one entry
	entries := f.auditEntries(t, created.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionHedgeFailed, entries[0].Action)
	assert.False(t, entries[0].Success)
	assert.Contains(t, entries[0].ErrorDetails, "no liquidity")
}

func TestSendToABookGuards(t *testing.T) {
	f := newServiceFixture(t)

	_, _, err := f.service.SendToABook(context.Background(), "TRD_MISSING", "", "", testAdmin)
	assert.ErrorIs(t, err, ErrTradeNotFound)

	closed := f.createTrade(t, "TRD_102")
	closed.Status = types.TradeClosed
	require.NoError(t, f.db.Save(closed).Error)
	_, _, err = f.service.SendToABook(context.Background(), "TRD_102", "", "", testAdmin)
	assert.ErrorIs(t, err, ErrTradeNotOpen)

	f.createTrade(t, "TRD_103")
	_, _, err = f.service.SendToABook(context.Background(), "TRD_103", "", "", testAdmin)
	require.NoError(t, err)
	_, _, err = f.service.SendToABook(context.Background(), "TRD_103", "", "", testAdmin)
	assert.ErrorIs(t, err, ErrAlreadyABook)
}

func TestMoveToBBookFromUnassigned(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createTrade(t, "TRD_110")

	trade, err := f.service.MoveToBBook(context.Background(), "TRD_110", "keep in house", testAdmin)
	require.NoError(t, err)

	assert.Equal(t, types.BookB, trade.BookType)
	assert.Equal(t, "ADMIN_1", trade.BookAssignedBy)
	assert.NotNil(t, trade.BookAssignedAt)

	entries := f.auditEntries(t, created.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionMoveToBBook, entries[0].Action)
	assert.True(t, entries[0].Success)
	assert.Empty(t, entries[0].ErrorDetails)
}

func TestMoveToBBookClosesLiveHedge(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createTrade(t, "TRD_111")

	_, lpTrade, err := f.service.SendToABook(context.Background(), "TRD_111", "", "", testAdmin)
	require.NoError(t, err)

	trade, err := f.service.MoveToBBook(context.Background(), "TRD_111", "", testAdmin)
	require.NoError(t, err)
	assert.Equal(t, types.BookB, trade.BookType)
	assert.Equal(t, types.LPStatusClosed, trade.LPStatus)

	var record hedge.LPTrade
	require.NoError(t, f.db.Where("lp_trade_id = ?", lpTrade.LPTradeID).First(&record).Error)
	assert.Equal(t, hedge.StatusClosed, record.Status)

	entries := f.auditEntries(t, created.ID)
	assert.Len(t, entries, 2)
}

func TestMoveToBBookCloseFailureDoesNotBlock(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createTrade(t, "TRD_112")

	_, lpTrade, err := f.service.SendToABook(context.Background(), "TRD_112", "", "", testAdmin)
	require.NoError(t, err)

	f.failClose = true
	trade, err := f.service.MoveToBBook(context.Background(), "TRD_112", "", testAdmin)
	require.NoError(t, err)

	// The house accepted the risk: book flipped even though the hedge
	// could not be torn down
	assert.Equal(t, types.BookB, trade.BookType)

	var record hedge.LPTrade
	require.NoError(t, f.db.Where("lp_trade_id = ?", lpTrade.LPTradeID).First(&record).Error)
	assert.Equal(t, hedge.StatusOpen, record.Status)
	assert.Equal(t, "venue down", record.ErrorMessage)

	// The move is audited as successful with the close error retained
	entries, _, err := f.trail.Query(audit.Filter{TradeID: created.ID, Action: audit.ActionMoveToBBook})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
	assert.Contains(t, entries[0].ErrorDetails, "venue down")
}

func TestMoveToBBookGuards(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.MoveToBBook(context.Background(), "TRD_MISSING", "", testAdmin)
	assert.ErrorIs(t, err, ErrTradeNotFound)

	f.createTrade(t, "TRD_113")
	_, err = f.service.MoveToBBook(context.Background(), "TRD_113", "", testAdmin)
	require.NoError(t, err)
	_, err = f.service.MoveToBBook(context.Background(), "TRD_113", "", testAdmin)
	assert.ErrorIs(t, err, ErrAlreadyBBook)
}

func TestListRunningTrades(t *testing.T) {
	f := newServiceFixture(t)
	f.createTrade(t, "TRD_120")
	f.createTrade(t, "TRD_121")

	_, err := f.service.MoveToBBook(context.Background(), "TRD_121", "", testAdmin)
	require.NoError(t, err)

	trades, pagination, counts, err := f.service.ListRunningTrades(TradeFilter{})
	require.NoError(t, err)
	assert.Len(t, trades, 2)
	assert.Equal(t, int64(2), pagination.Total)
	assert.Equal(t, int64(1), counts.Unassigned)
	assert.Equal(t, int64(1), counts.BBook)
	assert.Equal(t, int64(2), counts.Total)

	// Book filter narrows the listing
	trades, _, _, err = f.service.ListRunningTrades(TradeFilter{BookType: types.BookB})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "TRD_121", trades[0].TradeID)
}

func TestGetTradeDetail(t *testing.T) {
	f := newServiceFixture(t)
	f.createTrade(t, "TRD_130")

	_, lpTrade, err := f.service.SendToABook(context.Background(), "TRD_130", "", "", testAdmin)
	require.NoError(t, err)

	detail, err := f.service.GetTradeDetail("TRD_130")
	require.NoError(t, err)
	assert.Equal(t, "TRD_130", detail.Trade.TradeID)
	require.NotNil(t, detail.LPTrade)
	assert.Equal(t, lpTrade.LPTradeID, detail.LPTrade.LPTradeID)
	assert.Len(t, detail.AuditLogs, 1)

	_, err = f.service.GetTradeDetail("TRD_MISSING")
	assert.ErrorIs(t, err, ErrTradeNotFound)
}

func TestGetStats(t *testing.T) {
	f := newServiceFixture(t)
	f.createTrade(t, "TRD_140")
	f.createTrade(t, "TRD_141")

	_, _, err := f.service.SendToABook(context.Background(), "TRD_140", "", "", testAdmin)
	require.NoError(t, err)
	_, err = f.service.MoveToBBook(context.Background(), "TRD_141", "", testAdmin)
	require.NoError(t, err)

	stats, err := f.service.GetStats()
	require.NoError(t, err)

	byBook := make(map[string]BookStat)
	for _, s := range stats.BookStats {
		byBook[s.BookType] = s
	}
	assert.Equal(t, int64(1), byBook[types.BookA].Count)
	assert.Equal(t, int64(1), byBook[types.BookB].Count)
	assert.Equal(t, 2.0, byBook[types.BookA].TotalVolume)

	byStatus := make(map[string]int64)
	for _, s := range stats.LPStats {
		byStatus[s.Status] = s.Count
	}
	assert.Equal(t, int64(1), byStatus[hedge.StatusOpen])

	assert.Len(t, stats.RecentActions, 2)
}
