package models

import "time"

const (
	RiskConservative = "CONSERVATIVE"
	RiskModerate     = "MODERATE"
	RiskAggressive   = "AGGRESSIVE"
)

type RiskProfile struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint64 `gorm:"not null;uniqueIndex" json:"userId"`
	Tolerance    string `gorm:"type:varchar(20);not null;default:'MODERATE'" json:"tolerance"`
	HorizonYears int    `gorm:"not null;default:5" json:"horizonYears"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updatedAt"`
}

func (RiskProfile) TableName() string {
	return "risk_profiles"
}
