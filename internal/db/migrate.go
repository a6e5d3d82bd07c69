package db

import (
	"folio/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.User{},
		&models.Portfolio{},
		&models.Holding{},
		&models.Transaction{},
		&models.MarketQuote{},
		&models.RiskProfile{},
		&models.FinancialGoal{},
		&models.Notification{},
		&models.PortfolioSnapshot{},
	)
}
