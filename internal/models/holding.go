package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AssetTypeStock  = "STOCK"
	AssetTypeETF    = "ETF"
	AssetTypeBond   = "BOND"
	AssetTypeCrypto = "CRYPTO"
	AssetTypeFund   = "MUTUAL_FUND"
	AssetTypeOther  = "OTHER"
)

type Holding struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	PortfolioID uint64 `gorm:"not null;uniqueIndex:idx_holding_portfolio_symbol" json:"portfolioId"`
	Symbol      string `gorm:"type:varchar(20);not null;uniqueIndex:idx_holding_portfolio_symbol" json:"symbol"`
	Name        string `gorm:"type:varchar(200)" json:"name"`
	AssetType   string `gorm:"type:varchar(20);not null;default:'STOCK'" json:"assetType"`

	Quantity     decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"quantity"`
	AvgPrice     decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"avgPrice"`
	CurrentPrice decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"currentPrice"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updatedAt"`
}

func (Holding) TableName() string {
	return "holdings"
}

func (h Holding) MarketValue() decimal.Decimal {
	return h.CurrentPrice.Mul(h.Quantity)
}

func NormalizeAssetType(v string) string {
	switch v {
	case AssetTypeStock, AssetTypeETF, AssetTypeBond, AssetTypeCrypto, AssetTypeFund, AssetTypeOther:
		return v
	case "":
		return AssetTypeStock
	default:
		return AssetTypeOther
	}
}
