package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PortfolioSnapshot struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PortfolioID uint64    `gorm:"not null;uniqueIndex:idx_snapshot_portfolio_at" json:"portfolioId"`
	SnapshotAt  time.Time `gorm:"type:timestamptz;not null;uniqueIndex:idx_snapshot_portfolio_at" json:"snapshotAt"`

	Cash          decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"cash"`
	HoldingsValue decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"holdingsValue"`
	TotalValue    decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"totalValue"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
}

func (PortfolioSnapshot) TableName() string {
	return "portfolio_snapshots"
}
