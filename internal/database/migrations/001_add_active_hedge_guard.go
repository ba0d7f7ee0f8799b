package migrations

import (
	"gorm.io/gorm"
)

// AddActiveHedgeGuard creates the partial unique index that enforces at
// most one PENDING or OPEN hedge record per internal trade. The guard
// lives in storage so two concurrent send-to-A-Book calls cannot both
// create a hedge; the loser surfaces as a duplicate-key error.
func AddActiveHedgeGuard(db *gorm.DB) error {
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_lp_trades_active_per_trade
		ON lp_trades (internal_trade_id)
		WHERE status IN ('PENDING', 'OPEN')
	`).Error
}
