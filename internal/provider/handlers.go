package provider

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/vediex/book-api/internal/vault"
	"github.com/vediex/book-api/pkg/response"
)

// GinHandlers contains HTTP handlers for provider administration
type GinHandlers struct {
	registry *Registry
	db       *Database
	vault    *vault.Vault
}

func NewGinHandlers(registry *Registry, gormDB *gorm.DB, v *vault.Vault) *GinHandlers {
	return &GinHandlers{
		registry: registry,
		db:       NewDatabase(gormDB),
		vault:    v,
	}
}

// UpsertRequest is the admin payload for creating or updating a
// provider. Secret fields carrying the masked placeholder leave the
// stored ciphertext untouched on update.
type UpsertRequest struct {
	ID           uint   `json:"id"`
	ProviderName string `json:"provider_name" binding:"required"`
	ProviderCode string `json:"provider_code" binding:"required"`
	APIBaseURL   string `json:"api_base_url" binding:"required"`

	APIKey     string `json:"api_key"`
	SecretKey  string `json:"secret_key"`
	AccountID  string `json:"account_id"`
	Passphrase string `json:"passphrase"`

	PlaceOrderPath   string `json:"place_order_path"`
	CloseOrderPath   string `json:"close_order_path"`
	GetOrderPath     string `json:"get_order_path"`
	GetPositionsPath string `json:"get_positions_path"`
	GetBalancePath   string `json:"get_balance_path"`

	SymbolMapping map[string]string `json:"symbol_mapping"`

	IsActive  *bool `json:"is_active"`
	IsPrimary *bool `json:"is_primary"`

	MaxRetries        int `json:"max_retries"`
	TimeoutMs         int `json:"timeout_ms"`
	RequestsPerSecond int `json:"requests_per_second"`
	RequestsPerMinute int `json:"requests_per_minute"`
}

// ListProvidersHandler handles GET requests for the provider catalog.
// Only safe views leave the service.
func (h *GinHandlers) ListProvidersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		providers, err := h.db.ListAll()
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		views := make([]SafeView, 0, len(providers))
		for i := range providers {
			views = append(views, providers[i].SafeView())
		}
		response.Success(c, gin.H{"providers": views})
	}
}

// UpsertProviderHandler handles POST requests to create or update a
// provider profile, then refreshes the registry cache.
func (h *GinHandlers) UpsertProviderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpsertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		adminID := c.GetString("adminID")

		var p *LPProvider
		if req.ID != 0 {
			existing, err := h.db.GetByID(req.ID)
			if err != nil {
				response.InternalError(c, err.Error())
				return
			}
			if existing == nil {
				response.NotFound(c, "Provider not found")
				return
			}
			p = existing
			p.UpdatedBy = adminID
		} else {
			p = &LPProvider{CreatedBy: adminID}
		}

		p.ProviderName = req.ProviderName
		p.ProviderCode = req.ProviderCode
		p.APIBaseURL = req.APIBaseURL
		applyPath(&p.PlaceOrderPath, req.PlaceOrderPath, "/order")
		applyPath(&p.CloseOrderPath, req.CloseOrderPath, "/order/close")
		applyPath(&p.GetOrderPath, req.GetOrderPath, "/order/{orderId}")
		applyPath(&p.GetPositionsPath, req.GetPositionsPath, "/positions")
		applyPath(&p.GetBalancePath, req.GetBalancePath, "/balance")

		if req.IsActive != nil {
			p.IsActive = *req.IsActive
		} else if req.ID == 0 {
			p.IsActive = true
		}
		if req.IsPrimary != nil {
			p.IsPrimary = *req.IsPrimary
		}
		if req.MaxRetries > 0 {
			p.MaxRetries = req.MaxRetries
		}
		if req.TimeoutMs > 0 {
			p.TimeoutMs = req.TimeoutMs
		}
		if req.RequestsPerSecond > 0 {
			p.RequestsPerSecond = req.RequestsPerSecond
		}
		if req.RequestsPerMinute > 0 {
			p.RequestsPerMinute = req.RequestsPerMinute
		}

		if req.SymbolMapping != nil {
			raw, err := json.Marshal(req.SymbolMapping)
			if err != nil {
				response.BadRequest(c, "invalid symbol mapping")
				return
			}
			p.SymbolMapping = string(raw)
		}

		if err := h.applySecret(&p.APIKey, req.APIKey); err != nil {
			response.InternalError(c, err.Error())
			return
		}
		if err := h.applySecret(&p.SecretKey, req.SecretKey); err != nil {
			response.InternalError(c, err.Error())
			return
		}
		if err := h.applySecret(&p.AccountID, req.AccountID); err != nil {
			response.InternalError(c, err.Error())
			return
		}
		if err := h.applySecret(&p.Passphrase, req.Passphrase); err != nil {
			response.InternalError(c, err.Error())
			return
		}

		var err error
		if req.ID != 0 {
			err = h.db.Save(p)
		} else {
			err = h.db.Create(p)
		}
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		if err := h.registry.Refresh(); err != nil {
			log.Error().Err(err).Msg("failed to refresh LP registry after provider upsert")
		}

		response.Success(c, gin.H{"provider": p.SafeView()})
	}
}

// applySecret encrypts and stores a new secret value. Empty input and
// the masked placeholder both mean "keep what is stored".
func (h *GinHandlers) applySecret(stored *string, incoming string) error {
	if incoming == "" || incoming == MaskedSecret {
		return nil
	}
	encrypted, err := h.vault.Encrypt(incoming)
	if err != nil {
		return err
	}
	*stored = encrypted
	return nil
}

func applyPath(stored *string, incoming, fallback string) {
	switch {
	case incoming != "":
		*stored = incoming
	case *stored == "":
		*stored = fallback
	}
}
