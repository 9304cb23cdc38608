package models

import (
	"github.com/shopspring/decimal"
)

const (
	PropertyTypeResidential = "residential"
	PropertyTypeCommercial  = "commercial"
	PropertyTypeIndustrial  = "industrial"
)

const (
	PropertyStatusAvailable   = "available"
	PropertyStatusFullyFunded = "fully-funded"
	PropertyStatusComingSoon  = "coming-soon"
)

var PropertyTypes = []string{PropertyTypeResidential, PropertyTypeCommercial, PropertyTypeIndustrial}

var PropertyStatuses = []string{PropertyStatusAvailable, PropertyStatusFullyFunded, PropertyStatusComingSoon}

type Property struct {
	ID              string          `gorm:"primaryKey;type:uuid" json:"id"`
	Slug            string          `gorm:"uniqueIndex;size:300;not null" json:"slug"`
	Title           string          `gorm:"size:255;not null" json:"title"`
	Location        string          `gorm:"size:255;not null" json:"location"`
	Price           decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"price"`
	PricePerToken   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"price_per_token"`
	TotalTokens     int64           `gorm:"not null" json:"total_tokens"`
	AvailableTokens int64           `gorm:"not null" json:"available_tokens"`
	Description     string          `gorm:"type:text" json:"description"`
	ROI             float64         `gorm:"column:roi;not null" json:"roi"`
	RentalYield     float64         `gorm:"not null" json:"rental_yield"`
	Type            string          `gorm:"column:type;size:20;not null;index" json:"type"`
	Status          string          `gorm:"size:20;not null;index" json:"status"`
	FundingProgress float64         `gorm:"not null;default:0" json:"funding_progress"`

	// Ordered by Position.
	Images   []PropertyImage   `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE" json:"images"`
	Features []PropertyFeature `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE" json:"features"`

	Timestamps
}

// SoldTokens is the number of tokens no longer available for purchase.
func (p *Property) SoldTokens() int64 {
	return p.TotalTokens - p.AvailableTokens
}

// ComputeFundingProgress returns the sold share of the supply as a percentage.
func ComputeFundingProgress(totalTokens, availableTokens int64) float64 {
	if totalTokens <= 0 {
		return 0
	}
	return float64(totalTokens-availableTokens) / float64(totalTokens) * 100
}

type PropertyImage struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	PropertyID string `gorm:"type:uuid;not null;index" json:"property_id"`
	URL        string `gorm:"type:text;not null" json:"url"`
	ObjectKey  string `gorm:"size:512" json:"-"`
	Position   int    `gorm:"not null;default:0" json:"position"`
}

type PropertyFeature struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	PropertyID string `gorm:"type:uuid;not null;index" json:"property_id"`
	Feature    string `gorm:"size:255;not null" json:"feature"`
	Position   int    `gorm:"not null;default:0" json:"position"`
}
