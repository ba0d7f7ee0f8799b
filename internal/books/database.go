package books

import (
	"errors"

	"gorm.io/gorm"

	"github.com/vediex/book-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetTradeByRef(tradeRef string) (*types.Trade, error) {
	var trade types.Trade
	if err := d.db.Where("trade_id = ?", tradeRef).First(&trade).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

func (d *Database) SaveTrade(trade *types.Trade) error {
	return d.db.Save(trade).Error
}

// ListOpenTrades returns one page of open trades matching the filter,
// newest-opened first, along with the unpaginated total.
func (d *Database) ListOpenTrades(filter TradeFilter) ([]types.Trade, int64, error) {
	query := d.db.Model(&types.Trade{}).Where("status = ?", types.TradeOpen)
	if filter.BookType != "" && filter.BookType != "ALL" {
		query = query.Where("book_type = ?", filter.BookType)
	}
	if filter.Symbol != "" {
		query = query.Where("symbol LIKE ?", "%"+filter.Symbol+"%")
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
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

	var trades []types.Trade
	err := query.
		Order("opened_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&trades).Error
	if err != nil {
		return nil, 0, err
	}
	return trades, total, nil
}

// BookCounts aggregates open trades per book type.
func (d *Database) BookCounts() (BookCounts, error) {
	type row struct {
		BookType string
		Count    int64
	}
	var rows []row
	err := d.db.Model(&types.Trade{}).
		Select("book_type, COUNT(*) as count").
		Where("status = ?", types.TradeOpen).
		Group("book_type").
		Scan(&rows).Error
	if err != nil {
		return BookCounts{}, err
	}

	var counts BookCounts
	for _, r := range rows {
		switch r.BookType {
		case types.BookA:
			counts.ABook = r.Count
		case types.BookB:
			counts.BBook = r.Count
		default:
			counts.Unassigned += r.Count
		}
		counts.Total += r.Count
	}
	return counts, nil
}

// BookStats aggregates open-trade exposure per book type.
func (d *Database) BookStats() ([]BookStat, error) {
	var stats []BookStat
	err := d.db.Model(&types.Trade{}).
		Select("book_type, COUNT(*) as count, COALESCE(SUM(quantity), 0) as total_volume, COALESCE(SUM(margin_used), 0) as total_margin").
		Where("status = ?", types.TradeOpen).
		Group("book_type").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}
