package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vediex/book-api/internal/audit"
	"github.com/vediex/book-api/internal/database/migrations"
	"github.com/vediex/book-api/internal/hedge"
	"github.com/vediex/book-api/internal/provider"
	"github.com/vediex/book-api/internal/types"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&types.Trade{},
		&provider.LPProvider{},
		&hedge.LPTrade{},
		&audit.Entry{},
	)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddActiveHedgeGuard(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
