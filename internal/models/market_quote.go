package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MarketQuote struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"-"`
	Symbol        string          `gorm:"type:varchar(20);not null;uniqueIndex" json:"symbol"`
	Price         decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"price"`
	Change        decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0" json:"change"`
	ChangePercent decimal.Decimal `gorm:"type:numeric(12,6);not null;default:0" json:"changePercent"`
	AsOf          time.Time       `gorm:"type:timestamptz;not null" json:"lastUpdated"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"-"`
}

func (MarketQuote) TableName() string {
	return "market_quotes"
}
