package provider

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// ListActive returns all active providers in registration order. The
// ordering is load-bearing: the registry's default-provider fallback
// must be deterministic across refreshes.
func (d *Database) ListActive() ([]LPProvider, error) {
	var providers []LPProvider
	if err := d.db.Where("is_active = ?", true).Order("id ASC").Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

func (d *Database) ListAll() ([]LPProvider, error) {
	var providers []LPProvider
	if err := d.db.Order("id ASC").Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

func (d *Database) GetByID(id uint) (*LPProvider, error) {
	var p LPProvider
	if err := d.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (d *Database) GetByCode(code string) (*LPProvider, error) {
	var p LPProvider
	if err := d.db.Where("provider_code = ?", code).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (d *Database) Create(p *LPProvider) error {
	return d.db.Create(p).Error
}

func (d *Database) Save(p *LPProvider) error {
	return d.db.Save(p).Error
}

// RecordOrderSuccess bumps the provider's rolling success counters.
func (d *Database) RecordOrderSuccess(code string, at time.Time) error {
	return d.db.Model(&LPProvider{}).
		Where("provider_code = ?", code).
		UpdateColumns(map[string]interface{}{
			"total_orders":      gorm.Expr("total_orders + 1"),
			"successful_orders": gorm.Expr("successful_orders + 1"),
			"last_order_at":     at,
		}).Error
}

// RecordOrderFailure bumps the failure counters and stores the last
// error. Called once per exhausted placement, not once per retry.
func (d *Database) RecordOrderFailure(code string, lastError string, at time.Time) error {
	return d.db.Model(&LPProvider{}).
		Where("provider_code = ?", code).
		UpdateColumns(map[string]interface{}{
			"total_orders":  gorm.Expr("total_orders + 1"),
			"failed_orders": gorm.Expr("failed_orders + 1"),
			"last_error":    lastError,
			"last_error_at": at,
		}).Error
}
