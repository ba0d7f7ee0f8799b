package main

import (
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vediex/book-api/internal/database"
	"github.com/vediex/book-api/internal/types"
)

const (
	serverAddress = "http://localhost:8080"
	lpListenAddr  = ":9090"
	lpBaseURL     = "http://localhost:9090"
	numTrades     = 20

	// Fraction of LP order placements that fail, to exercise the
	// retry and B-Book fallback paths.
	lpFailureRate = 0.15
)

var (
	symbols = []string{"EURUSD", "GBPUSD", "XAUUSD", "BTCUSD", "US500"}
	sides   = []string{"BUY", "SELL"}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median and 95th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p95 = rs.durations[p95idx]

	return
}

// mockLP is an in-process liquidity provider venue. It accepts signed
// order requests the way a real LP would and fills them at a synthetic
// mid for the symbol, failing a configurable fraction of placements.
type mockLP struct {
	mu     sync.Mutex
	orders map[string]float64 // orderId -> fill price
}

// venueMids quotes the venue's own instrument codes; orders arrive
// already symbol-mapped (e.g. XAUUSD -> GOLD).
var venueMids = map[string]float64{
	"EURUSD": 1.0850,
	"GBPUSD": 1.2700,
	"GOLD":   2400.0,
	"BTCUSD": 65000.0,
	"US500":  5600.0,
}

func (lp *mockLP) midFor(symbol string) float64 {
	if mid, ok := venueMids[symbol]; ok {
		return mid
	}
	return 100.0
}

func newMockLP() *mockLP {
	return &mockLP{orders: make(map[string]float64)}
}

func (lp *mockLP) signedRequest(c *gin.Context) bool {
	if c.GetHeader("X-API-KEY") == "" || c.GetHeader("X-SIGNATURE") == "" || c.GetHeader("X-TIMESTAMP") == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "missing signature headers"})
		return false
	}
	return true
}

func (lp *mockLP) placeOrder(c *gin.Context) {
	if !lp.signedRequest(c) {
		return
	}

	var req struct {
		Symbol   string  `json:"symbol"`
		Side     string  `json:"side"`
		Quantity float64 `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid order payload"})
		return
	}

	if rand.Float64() < lpFailureRate {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "insufficient liquidity"})
		return
	}

	orderID := fmt.Sprintf("LP-%s", uuid.New().String()[:8])
	fill := lp.midFor(req.Symbol) * (1 + (rand.Float64()-0.5)*0.0002)

	lp.mu.Lock()
	lp.orders[orderID] = fill
	lp.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"orderId": orderID,
		"status":  "FILLED",
		"price":   fill,
	})
}

func (lp *mockLP) closeOrder(c *gin.Context) {
	if !lp.signedRequest(c) {
		return
	}

	var req struct {
		OrderID string `json:"orderId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid close payload"})
		return
	}

	lp.mu.Lock()
	openPrice, ok := lp.orders[req.OrderID]
	delete(lp.orders, req.OrderID)
	lp.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "unknown order"})
		return
	}

	closePrice := openPrice * (1 + (rand.Float64()-0.5)*0.001)
	c.JSON(http.StatusOK, gin.H{
		"orderId":    req.OrderID,
		"status":     "CLOSED",
		"closePrice": closePrice,
		"pnl":        (closePrice - openPrice) * 100,
		"swap":       0.0,
	})
}

func (lp *mockLP) getOrder(c *gin.Context) {
	if !lp.signedRequest(c) {
		return
	}

	orderID := c.Param("orderId")
	lp.mu.Lock()
	price, ok := lp.orders[orderID]
	lp.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "unknown order"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": orderID, "status": "OPEN", "price": price})
}

// startMockLP runs the mock venue in the background
func startMockLP() *mockLP {
	lp := newMockLP()
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.POST("/order", lp.placeOrder)
	router.POST("/order/close", lp.closeOrder)
	router.GET("/order/:orderId", lp.getOrder)

	go func() {
		if err := http.ListenAndServe(lpListenAddr, router); err != nil {
			log.Fatal().Err(err).Msg("mock LP server failed")
		}
	}()

	return lp
}

// simulationClient drives the admin API during the simulation run
type simulationClient struct {
	api   *resty.Client
	stats map[string]*routeStats
}

func newSimulationClient() *simulationClient {
	return &simulationClient{
		api: resty.New().SetBaseURL(serverAddress).SetTimeout(30 * time.Second),
		stats: map[string]*routeStats{
			"auth":     {name: "Authentication"},
			"provider": {name: "Provider Upsert"},
			"send":     {name: "Send To A-Book"},
			"move":     {name: "Move To B-Book"},
			"detail":   {name: "Trade Detail"},
			"stats":    {name: "Book Stats"},
			"audit":    {name: "Audit Logs"},
		},
	}
}

func (sc *simulationClient) track(route string, start time.Time, failed bool) {
	rs := sc.stats[route]
	rs.addDuration(time.Since(start))
	if failed {
		rs.failures++
	}
}

// authenticate obtains a superadmin token and installs it on the client
func (sc *simulationClient) authenticate() error {
	start := time.Now()
	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}

	resp, err := sc.api.R().
		SetBody(map[string]string{
			"email":    getEnv("ADMIN_EMAIL", "admin@vediex.io"),
			"password": getEnv("ADMIN_PASSWORD", "changeme"),
		}).
		SetResult(&result).
		Post("/api/v1/auth/token")

	failed := err != nil || resp.IsError()
	sc.track("auth", start, failed)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("auth failed: %s", resp.Status())
	}

	sc.api.SetAuthToken(result.Data.Token)
	return nil
}

// registerProvider points the routing service at the mock LP venue
func (sc *simulationClient) registerProvider() error {
	start := time.Now()
	resp, err := sc.api.R().
		SetBody(map[string]interface{}{
			"provider_name":       "Simulation LP",
			"provider_code":       "SIMLP",
			"api_base_url":        lpBaseURL,
			"api_key":             "sim-api-key",
			"secret_key":          "sim-secret-key",
			"symbol_mapping":      map[string]string{"XAUUSD": "GOLD"},
			"is_primary":          true,
			"max_retries":         3,
			"timeout_ms":          5000,
			"requests_per_second": 50,
		}).
		Post("/api/v1/admin/lp-providers")

	failed := err != nil || resp.IsError()
	sc.track("provider", start, failed)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("provider upsert failed: %s - %s", resp.Status(), resp.String())
	}
	return nil
}

func (sc *simulationClient) sendToABook(tradeID string) bool {
	start := time.Now()
	resp, err := sc.api.R().
		SetBody(map[string]string{"trade_id": tradeID, "notes": "simulation hedge"}).
		Post("/api/v1/admin/trades/send-to-a-book")
	failed := err != nil || resp.IsError()
	sc.track("send", start, failed)
	return !failed
}

func (sc *simulationClient) moveToBBook(tradeID string) bool {
	start := time.Now()
	resp, err := sc.api.R().
		SetBody(map[string]string{"trade_id": tradeID, "notes": "simulation unwind"}).
		Post("/api/v1/admin/trades/move-to-b-book")
	failed := err != nil || resp.IsError()
	sc.track("move", start, failed)
	return !failed
}

func (sc *simulationClient) fetchTradeDetail(tradeID string) {
	start := time.Now()
	resp, err := sc.api.R().Get("/api/v1/admin/trades/" + tradeID)
	sc.track("detail", start, err != nil || resp.IsError())
}

func (sc *simulationClient) fetchBookStats() (string, error) {
	start := time.Now()
	resp, err := sc.api.R().Get("/api/v1/admin/book-stats")
	failed := err != nil || resp.IsError()
	sc.track("stats", start, failed)
	if err != nil {
		return "", err
	}
	return resp.String(), nil
}

func (sc *simulationClient) fetchAuditLogs() {
	start := time.Now()
	resp, err := sc.api.R().Get("/api/v1/admin/audit-logs")
	sc.track("audit", start, err != nil || resp.IsError())
}

// seedTrades inserts open platform trades directly into the shared
// database, standing in for the upstream trade feed.
func seedTrades(dbPath string, n int) ([]string, error) {
	db, err := database.NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	refs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		price := 1000 + rand.Float64()*500
		trade := types.Trade{
			TradeID:      fmt.Sprintf("TRD_%s", uuid.New().String()[:8]),
			UserID:       fmt.Sprintf("USR_%04d", rand.Intn(500)),
			UserEmail:    fmt.Sprintf("user%d@example.com", rand.Intn(500)),
			Symbol:       symbols[rand.Intn(len(symbols))],
			Side:         sides[rand.Intn(len(sides))],
			Quantity:     float64(rand.Intn(10)+1) / 10,
			OpenPrice:    price,
			CurrentPrice: price,
			MarginUsed:   price / 100,
			Status:       types.TradeOpen,
			OpenedAt:     time.Now(),
		}
		if err := db.Create(&trade).Error; err != nil {
			return nil, err
		}
		refs = append(refs, trade.TradeID)
	}
	return refs, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// printStats outputs the performance summary for all routes
func (sc *simulationClient) printStats() {
	log.Info().Msg("=== Simulation Performance Summary ===")
	for _, rs := range sc.stats {
		if rs.totalCalls == 0 {
			continue
		}
		min, max, mean, median, p95 := rs.calculate()
		log.Info().
			Str("route", rs.name).
			Int("calls", rs.totalCalls).
			Int("failures", rs.failures).
			Dur("min", min).
			Dur("max", max).
			Dur("mean", mean).
			Dur("median", median).
			Dur("p95", p95).
			Msg("route statistics")
	}
}

// main runs a routing simulation against a locally running server:
// it stands up a mock LP venue, registers it as the primary provider,
// seeds open trades and routes them between books.
func main() {
	startMockLP()
	log.Info().Str("addr", lpListenAddr).Msg("mock LP venue listening")

	sc := newSimulationClient()
	if err := sc.authenticate(); err != nil {
		log.Fatal().Err(err).Msg("failed to authenticate")
	}
	if err := sc.registerProvider(); err != nil {
		log.Fatal().Err(err).Msg("failed to register LP provider")
	}

	refs, err := seedTrades(getEnv("DB_PATH", "book.db"), numTrades)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed trades")
	}
	log.Info().Int("count", len(refs)).Msg("seeded open trades")

	var hedged, internalized, unwound int
	for i, ref := range refs {
		switch {
		case i%3 == 2:
			// Keep the risk in house
			if sc.moveToBBook(ref) {
				internalized++
			}
		default:
			if sc.sendToABook(ref) {
				hedged++
				// Unwind a few hedges back to the B-Book
				if i%4 == 0 {
					if sc.moveToBBook(ref) {
						unwound++
					}
				}
			}
		}
		sc.fetchTradeDetail(ref)
	}

	sc.fetchAuditLogs()
	stats, err := sc.fetchBookStats()
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch book stats")
	}

	log.Info().
		Int("hedged", hedged).
		Int("internalized", internalized).
		Int("unwound", unwound).
		Msg("routing decisions complete")
	if stats != "" {
		log.Info().RawJSON("book_stats", []byte(stats)).Msg("final book distribution")
	}

	sc.printStats()
}
