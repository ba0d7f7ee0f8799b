package hedge

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/vediex/book-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateHedge inserts a new ledger record. A violation of the
// one-active-hedge index surfaces as ErrAlreadyHedged so the caller can
// distinguish the race from a storage fault.
func (d *Database) CreateHedge(lpTrade *LPTrade) error {
	if err := d.db.Create(lpTrade).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyHedged
		}
		return err
	}
	return nil
}

func (d *Database) SaveHedge(lpTrade *LPTrade) error {
	return d.db.Save(lpTrade).Error
}

// GetActiveHedge returns the trade's PENDING or OPEN record, nil when
// none exists.
func (d *Database) GetActiveHedge(internalTradeID uint) (*LPTrade, error) {
	var lpTrade LPTrade
	err := d.db.
		Where("internal_trade_id = ? AND status IN ?", internalTradeID, []string{StatusPending, StatusOpen}).
		First(&lpTrade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lpTrade, nil
}

// GetOpenHedge returns the trade's OPEN record, nil when none exists.
func (d *Database) GetOpenHedge(internalTradeID uint) (*LPTrade, error) {
	var lpTrade LPTrade
	err := d.db.
		Where("internal_trade_id = ? AND status = ?", internalTradeID, StatusOpen).
		First(&lpTrade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lpTrade, nil
}

// GetLatestHedge returns the most recent record for a trade regardless
// of state, nil when the trade was never hedged.
func (d *Database) GetLatestHedge(internalTradeID uint) (*LPTrade, error) {
	var lpTrade LPTrade
	err := d.db.
		Where("internal_trade_id = ?", internalTradeID).
		Order("id DESC").
		First(&lpTrade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lpTrade, nil
}

func (d *Database) GetHedgeByLPTradeID(lpTradeID string) (*LPTrade, error) {
	var lpTrade LPTrade
	if err := d.db.Where("lp_trade_id = ?", lpTradeID).First(&lpTrade).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lpTrade, nil
}

// CountByStatus aggregates ledger records per lifecycle state.
func (d *Database) CountByStatus() ([]StatusCount, error) {
	var counts []StatusCount
	err := d.db.Model(&LPTrade{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (d *Database) SaveTrade(trade *types.Trade) error {
	return d.db.Save(trade).Error
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
