package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Portfolio struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint64 `gorm:"not null;index" json:"userId"`
	Name        string `gorm:"type:varchar(120);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	Cash       decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"cash"`
	TotalValue decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"totalValue"`

	Holdings []Holding `gorm:"foreignKey:PortfolioID" json:"holdings,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updatedAt"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}

// HoldingsValue sums currentPrice × quantity over the loaded holdings.
func (p Portfolio) HoldingsValue() decimal.Decimal {
	total := decimal.Zero
	for _, h := range p.Holdings {
		total = total.Add(h.MarketValue())
	}
	return total
}
