package audit

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Trail is the append-only audit store. No update or delete operations
// exist on it; immutability is structural.
type Trail struct {
	db *gorm.DB
}

func NewTrail(db *gorm.DB) *Trail {
	return &Trail{db: db}
}

// Append persists a new entry, assigning its audit id.
func (t *Trail) Append(entry *Entry) error {
	entry.AuditID = "AUD_" + uuid.New().String()
	if err := t.db.Create(entry).Error; err != nil {
		log.Error().Err(err).
			Str("trade_ref", entry.TradeRef).
			Str("action", entry.Action).
			Msg("failed to append audit entry")
		return err
	}
	return nil
}

// Query returns entries matching the filter, newest first, with the
// total count for pagination.
func (t *Trail) Query(filter Filter) ([]Entry, int64, error) {
	query := t.db.Model(&Entry{})
	if filter.TradeID != 0 {
		query = query.Where("trade_id = ?", filter.TradeID)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 50
	}

	var entries []Entry
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// RecentByTrade returns the newest entries for one trade.
func (t *Trail) RecentByTrade(tradeID uint, limit int) ([]Entry, error) {
	var entries []Entry
	err := t.db.
		Where("trade_id = ?", tradeID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Recent returns the newest entries across all trades.
func (t *Trail) Recent(limit int) ([]Entry, error) {
	var entries []Entry
	err := t.db.
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
