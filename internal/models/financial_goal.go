package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type FinancialGoal struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint64          `gorm:"not null;index" json:"userId"`
	Name         string          `gorm:"type:varchar(120);not null" json:"name"`
	TargetAmount decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"targetAmount"`
	TargetDate   *time.Time      `gorm:"type:timestamptz" json:"targetDate,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updatedAt"`
}

func (FinancialGoal) TableName() string {
	return "financial_goals"
}
