package books

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vediex/book-api/internal/audit"
	"github.com/vediex/book-api/internal/hedge"
	"github.com/vediex/book-api/internal/types"
	"github.com/vediex/book-api/pkg/response"
)

// GinHandlers contains HTTP handlers for book-routing endpoints
type GinHandlers struct {
	service *Service
	trail   *audit.Trail
}

func NewGinHandlers(service *Service, trail *audit.Trail) *GinHandlers {
	return &GinHandlers{
		service: service,
		trail:   trail,
	}
}

// RouteRequest is the payload for both book-routing actions. The
// provider code is only honored by send-to-a-book.
type RouteRequest struct {
	TradeID    string `json:"trade_id" binding:"required"`
	LPProvider string `json:"lp_provider"`
	Notes      string `json:"notes"`
}

// ListRunningTradesHandler handles GET requests for open trades with
// book filters, pagination and aggregate counts.
func (h *GinHandlers) ListRunningTradesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := TradeFilter{
			BookType: c.Query("book_type"),
			Symbol:   c.Query("symbol"),
			UserID:   c.Query("user_id"),
			Page:     intQuery(c, "page", 1),
			Limit:    intQuery(c, "limit", 50),
		}

		trades, pagination, counts, err := h.service.ListRunningTrades(filter)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{
			"trades":      trades,
			"pagination":  pagination,
			"book_counts": counts,
		})
	}
}

// GetTradeDetailHandler handles GET requests for one trade with its
// hedge record and recent audit entries.
// URL parameter: trade_id
func (h *GinHandlers) GetTradeDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := h.service.GetTradeDetail(c.Param("trade_id"))
		if err != nil {
			if errors.Is(err, ErrTradeNotFound) {
				response.NotFound(c, err.Error())
				return
			}
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, detail)
	}
}

// SendToABookHandler handles POST requests to route a trade to the
// A-Book via an LP hedge.
func (h *GinHandlers) SendToABookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RouteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		trade, lpTrade, err := h.service.SendToABook(
			c.Request.Context(), req.TradeID, req.LPProvider, req.Notes, adminContext(c))
		if err != nil {
			handleRoutingError(c, err)
			return
		}

		response.Success(c, gin.H{
			"message":  "Trade sent to A-Book successfully",
			"trade":    trade,
			"lp_trade": lpTrade,
		})
	}
}

// MoveToBBookHandler handles POST requests to reassign a trade to the
// B-Book, closing any live hedge on a best-effort basis.
func (h *GinHandlers) MoveToBBookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RouteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		trade, err := h.service.MoveToBBook(c.Request.Context(), req.TradeID, req.Notes, adminContext(c))
		if err != nil {
			handleRoutingError(c, err)
			return
		}

		response.Success(c, gin.H{
			"message": "Trade moved to B-Book successfully",
			"trade":   trade,
		})
	}
}

// ListAuditLogsHandler handles GET requests for the audit trail with
// trade/user/action filters and pagination.
func (h *GinHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := audit.Filter{
			UserID: c.Query("user_id"),
			Action: c.Query("action"),
			Page:   intQuery(c, "page", 1),
			Limit:  intQuery(c, "limit", 50),
		}
		if tradeRef := c.Query("trade_id"); tradeRef != "" {
			trade, err := h.service.db.GetTradeByRef(tradeRef)
			if err != nil {
				response.InternalError(c, err.Error())
				return
			}
			if trade == nil {
				response.NotFound(c, ErrTradeNotFound.Error())
				return
			}
			filter.TradeID = trade.ID
		}

		entries, total, err := h.trail.Query(filter)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{
			"logs":       entries,
			"pagination": paginate(filter.Page, filter.Limit, total),
		})
	}
}

// GetStatsHandler handles GET requests for aggregate book and hedge
// statistics.
func (h *GinHandlers) GetStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.service.GetStats()
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, stats)
	}
}

// handleRoutingError maps the routing error taxonomy onto HTTP codes so
// callers can branch without string matching.
func handleRoutingError(c *gin.Context, err error) {
	var exhausted *hedge.ExhaustedError
	switch {
	case errors.Is(err, ErrTradeNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrTradeNotOpen),
		errors.Is(err, ErrAlreadyABook),
		errors.Is(err, ErrAlreadyBBook),
		errors.Is(err, hedge.ErrAlreadyHedged),
		errors.Is(err, hedge.ErrNoOpenHedge):
		response.Conflict(c, err.Error())
	case errors.Is(err, hedge.ErrNoProviderConfigured),
		errors.Is(err, hedge.ErrProviderNotFound):
		response.BadRequest(c, err.Error())
	case errors.As(err, &exhausted):
		response.InternalError(c, err.Error())
	default:
		response.InternalError(c, err.Error())
	}
}

func adminContext(c *gin.Context) types.AdminContext {
	return types.AdminContext{
		AdminID:    c.GetString("adminID"),
		AdminEmail: c.GetString("adminEmail"),
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
