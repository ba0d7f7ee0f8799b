package provider

import (
	"time"

	"gorm.io/gorm"
)

// MaskedSecret is the placeholder returned in place of any stored
// credential. Raw secrets never cross the API boundary; an upsert that
// sends this placeholder back leaves the stored value untouched.
const MaskedSecret = "********"

// LPProvider is a liquidity-provider connection profile. The four
// credential fields hold vault ciphertext, never plaintext.
type LPProvider struct {
	gorm.Model   `json:"-"`
	ProviderName string `gorm:"uniqueIndex" json:"provider_name"`
	ProviderCode string `gorm:"uniqueIndex" json:"provider_code"`
	APIBaseURL   string `json:"api_base_url"`

	// Encrypted at rest
	APIKey     string `json:"-"`
	SecretKey  string `json:"-"`
	AccountID  string `json:"-"`
	Passphrase string `json:"-"`

	// Endpoint path templates
	PlaceOrderPath   string `gorm:"default:/order" json:"place_order_path"`
	CloseOrderPath   string `gorm:"default:/order/close" json:"close_order_path"`
	GetOrderPath     string `gorm:"default:/order/{orderId}" json:"get_order_path"`
	GetPositionsPath string `gorm:"default:/positions" json:"get_positions_path"`
	GetBalancePath   string `gorm:"default:/balance" json:"get_balance_path"`

	// Internal symbol -> provider symbol, stored as a JSON object
	SymbolMapping string `json:"symbol_mapping"`

	IsActive  bool `gorm:"default:true" json:"is_active"`
	IsPrimary bool `gorm:"default:false" json:"is_primary"`

	// Request policy
	MaxRetries        int `gorm:"default:3" json:"max_retries"`
	TimeoutMs         int `gorm:"default:30000" json:"timeout_ms"`
	RequestsPerSecond int `gorm:"default:10" json:"requests_per_second"`
	RequestsPerMinute int `gorm:"default:300" json:"requests_per_minute"`

	// Rolling statistics, mutated by the hedge engine after each
	// placement attempt. Best-effort counters; the hedge ledger is the
	// source of truth for financial outcomes.
	TotalOrders      int64      `json:"total_orders"`
	SuccessfulOrders int64      `json:"successful_orders"`
	FailedOrders     int64      `json:"failed_orders"`
	LastOrderAt      *time.Time `json:"last_order_at,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
	LastErrorAt      *time.Time `json:"last_error_at,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credentials holds a provider's decrypted secrets. Values live only in
// memory for the duration of a request build.
type Credentials struct {
	APIKey     string
	SecretKey  string
	AccountID  string
	Passphrase string
}

// SafeView is the only representation of a provider that may leave the
// service. Credential fields carry the masked placeholder when a value
// exists and null when absent.
type SafeView struct {
	ID                uint              `json:"id"`
	ProviderName      string            `json:"provider_name"`
	ProviderCode      string            `json:"provider_code"`
	APIBaseURL        string            `json:"api_base_url"`
	APIKey            *string           `json:"api_key"`
	SecretKey         *string           `json:"secret_key"`
	AccountID         *string           `json:"account_id"`
	Passphrase        *string           `json:"passphrase"`
	PlaceOrderPath    string            `json:"place_order_path"`
	CloseOrderPath    string            `json:"close_order_path"`
	GetOrderPath      string            `json:"get_order_path"`
	GetPositionsPath  string            `json:"get_positions_path"`
	GetBalancePath    string            `json:"get_balance_path"`
	SymbolMapping     map[string]string `json:"symbol_mapping"`
	IsActive          bool              `json:"is_active"`
	IsPrimary         bool              `json:"is_primary"`
	MaxRetries        int               `json:"max_retries"`
	TimeoutMs         int               `json:"timeout_ms"`
	RequestsPerSecond int               `json:"requests_per_second"`
	RequestsPerMinute int               `json:"requests_per_minute"`
	TotalOrders       int64             `json:"total_orders"`
	SuccessfulOrders  int64             `json:"successful_orders"`
	FailedOrders      int64             `json:"failed_orders"`
	LastOrderAt       *time.Time        `json:"last_order_at"`
	LastError         string            `json:"last_error,omitempty"`
	LastErrorAt       *time.Time        `json:"last_error_at"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// SafeView projects the profile for external consumption.
func (p *LPProvider) SafeView() SafeView {
	return SafeView{
		ID:                p.ID,
		ProviderName:      p.ProviderName,
		ProviderCode:      p.ProviderCode,
		APIBaseURL:        p.APIBaseURL,
		APIKey:            maskSecret(p.APIKey),
		SecretKey:         maskSecret(p.SecretKey),
		AccountID:         maskSecret(p.AccountID),
		Passphrase:        maskSecret(p.Passphrase),
		PlaceOrderPath:    p.PlaceOrderPath,
		CloseOrderPath:    p.CloseOrderPath,
		GetOrderPath:      p.GetOrderPath,
		GetPositionsPath:  p.GetPositionsPath,
		GetBalancePath:    p.GetBalancePath,
		SymbolMapping:     parseSymbolMapping(p.SymbolMapping),
		IsActive:          p.IsActive,
		IsPrimary:         p.IsPrimary,
		MaxRetries:        p.MaxRetries,
		TimeoutMs:         p.TimeoutMs,
		RequestsPerSecond: p.RequestsPerSecond,
		RequestsPerMinute: p.RequestsPerMinute,
		TotalOrders:       p.TotalOrders,
		SuccessfulOrders:  p.SuccessfulOrders,
		FailedOrders:      p.FailedOrders,
		LastOrderAt:       p.LastOrderAt,
		LastError:         p.LastError,
		LastErrorAt:       p.LastErrorAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func maskSecret(stored string) *string {
	if stored == "" {
		return nil
	}
	masked := MaskedSecret
	return &masked
}
