package provider

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/vediex/book-api/internal/vault"
)

// Registry is the authoritative in-memory view of all active liquidity
// providers. It is constructed once, injected into its consumers, and
// refreshed wholesale after an administrator edits provider config.
type Registry struct {
	db    *Database
	vault *vault.Vault

	mu             sync.RWMutex
	providers      map[string]*LPProvider
	order          []string
	symbolMaps     map[string]map[string]string
	limiters       map[string]*rate.Limiter
	minuteLimiters map[string]*rate.Limiter
}

func NewRegistry(gormDB *gorm.DB, v *vault.Vault) *Registry {
	return &Registry{
		db:             NewDatabase(gormDB),
		vault:          v,
		providers:      make(map[string]*LPProvider),
		symbolMaps:     make(map[string]map[string]string),
		limiters:       make(map[string]*rate.Limiter),
		minuteLimiters: make(map[string]*rate.Limiter),
	}
}

// Refresh reloads all active providers from storage and swaps the cache
// in one step, so concurrent readers never observe a partial update.
// Safe to call repeatedly.
func (r *Registry) Refresh() error {
	configs, err := r.db.ListActive()
	if err != nil {
		return err
	}

	providers := make(map[string]*LPProvider, len(configs))
	order := make([]string, 0, len(configs))
	symbolMaps := make(map[string]map[string]string, len(configs))
	limiters := make(map[string]*rate.Limiter, len(configs))
	minuteLimiters := make(map[string]*rate.Limiter, len(configs))

	for i := range configs {
		p := configs[i]
		providers[p.ProviderCode] = &p
		order = append(order, p.ProviderCode)
		symbolMaps[p.ProviderCode] = parseSymbolMapping(p.SymbolMapping)

		rps := p.RequestsPerSecond
		if rps <= 0 {
			rps = 10
		}
		limiters[p.ProviderCode] = rate.NewLimiter(rate.Limit(rps), rps)

		rpm := p.RequestsPerMinute
		if rpm <= 0 {
			rpm = 300
		}
		burst := rpm / 60
		if burst < 1 {
			burst = 1
		}
		minuteLimiters[p.ProviderCode] = rate.NewLimiter(rate.Limit(float64(rpm))/60, burst)
	}

	r.mu.Lock()
	// Reuse existing limiters where possible so in-flight reservations
	// carry across a refresh.
	for code, existing := range r.limiters {
		if fresh, ok := limiters[code]; ok && existing.Limit() == fresh.Limit() {
			limiters[code] = existing
		}
	}
	for code, existing := range r.minuteLimiters {
		if fresh, ok := minuteLimiters[code]; ok && existing.Limit() == fresh.Limit() {
			minuteLimiters[code] = existing
		}
	}
	r.providers = providers
	r.order = order
	r.symbolMaps = symbolMaps
	r.limiters = limiters
	r.minuteLimiters = minuteLimiters
	r.mu.Unlock()

	log.Info().Int("providers", len(order)).Msg("LP registry refreshed")
	return nil
}

// GetProvider looks up a provider by code, or selects the default when
// code is empty: the first primary active provider, else the first
// active provider in registration order, else nil.
func (r *Registry) GetProvider(code string) *LPProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if code != "" {
		return r.providers[code]
	}

	for _, c := range r.order {
		if p := r.providers[c]; p.IsPrimary && p.IsActive {
			return p
		}
	}
	for _, c := range r.order {
		if p := r.providers[c]; p.IsActive {
			return p
		}
	}
	return nil
}

// Credentials returns the provider's decrypted secrets.
func (r *Registry) Credentials(p *LPProvider) Credentials {
	return Credentials{
		APIKey:     r.vault.Decrypt(p.APIKey),
		SecretKey:  r.vault.Decrypt(p.SecretKey),
		AccountID:  r.vault.Decrypt(p.AccountID),
		Passphrase: r.vault.Decrypt(p.Passphrase),
	}
}

// MapSymbol translates an internal instrument code to the provider's
// code, falling back to the internal one when no mapping exists.
func (r *Registry) MapSymbol(p *LPProvider, internalSymbol string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.symbolMaps[p.ProviderCode]; ok {
		if mapped, ok := m[internalSymbol]; ok {
			return mapped
		}
	}
	return internalSymbol
}

// Limiter returns the provider's per-second rate limiter. Always
// non-nil; an unknown code gets an unlimited limiter so a stale cache
// cannot block a close.
func (r *Registry) Limiter(code string) *rate.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if l, ok := r.limiters[code]; ok {
		return l
	}
	return rate.NewLimiter(rate.Inf, 1)
}

// MinuteLimiter returns the provider's per-minute ceiling limiter. Both
// configured ceilings are contracts; a request must clear this one and
// the per-second one before it leaves the process.
func (r *Registry) MinuteLimiter(code string) *rate.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if l, ok := r.minuteLimiters[code]; ok {
		return l
	}
	return rate.NewLimiter(rate.Inf, 1)
}

// RecordSuccess updates the provider's rolling stats after a confirmed
// hedge placement.
func (r *Registry) RecordSuccess(code string) {
	now := time.Now()
	if err := r.db.RecordOrderSuccess(code, now); err != nil {
		log.Error().Err(err).Str("provider", code).Msg("failed to record provider success stats")
	}

	r.mu.Lock()
	if p, ok := r.providers[code]; ok {
		p.TotalOrders++
		p.SuccessfulOrders++
		p.LastOrderAt = &now
	}
	r.mu.Unlock()
}

// RecordFailure updates the provider's rolling stats after an exhausted
// hedge placement.
func (r *Registry) RecordFailure(code string, lastError string) {
	now := time.Now()
	if err := r.db.RecordOrderFailure(code, lastError, now); err != nil {
		log.Error().Err(err).Str("provider", code).Msg("failed to record provider failure stats")
	}

	r.mu.Lock()
	if p, ok := r.providers[code]; ok {
		p.TotalOrders++
		p.FailedOrders++
		p.LastError = lastError
		p.LastErrorAt = &now
	}
	r.mu.Unlock()
}

func parseSymbolMapping(raw string) map[string]string {
	m := make(map[string]string)
	if raw == "" {
		return m
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		log.Warn().Err(err).Msg("invalid symbol mapping JSON, using identity mapping")
		return map[string]string{}
	}
	return m
}
