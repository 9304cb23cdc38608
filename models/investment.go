package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Investment is one user's stake in one property.
type Investment struct {
	ID               string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID           string          `gorm:"type:uuid;not null;index" json:"user_id"`
	PropertyID       string          `gorm:"type:uuid;not null;index" json:"property_id"`
	TokensOwned      int64           `gorm:"not null" json:"tokens_owned"`
	InvestmentAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"investment_amount"`
	PurchaseDate     time.Time       `gorm:"not null;index;<-:create" json:"purchase_date"` // write-once
	Earnings         decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"earnings"`
	ROI              float64         `gorm:"column:roi;not null;default:0" json:"roi"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Property Property `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE" json:"-"`
}
