package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TxBuy        = "BUY"
	TxSell       = "SELL"
	TxDividend   = "DIVIDEND"
	TxDeposit    = "DEPOSIT"
	TxWithdrawal = "WITHDRAWAL"
	TxRebalance  = "REBALANCE"
)

// Transaction is append-only. Rows are never updated or deleted.
type Transaction struct {
	ID          uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint64  `gorm:"not null;index" json:"userId"`
	PortfolioID uint64  `gorm:"not null;index" json:"portfolioId"`
	HoldingID   *uint64 `gorm:"index" json:"holdingId,omitempty"`

	Type   string `gorm:"type:varchar(20);not null;index" json:"type"`
	Symbol string `gorm:"type:varchar(20)" json:"symbol,omitempty"`

	Quantity    decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0" json:"price"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"totalAmount"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"createdAt"`
}

func (Transaction) TableName() string {
	return "transactions"
}
