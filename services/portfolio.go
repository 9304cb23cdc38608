package services

import (
	"time"

	"realestate-token-api/models"

	"github.com/shopspring/decimal"
)

// InvestmentDetail is one portfolio line, enriched with the property's
// display title and first image.
type InvestmentDetail struct {
	ID               string
	PropertyID       string
	PropertyTitle    string
	PropertyImage    *string
	TokensOwned      int64
	InvestmentAmount decimal.Decimal
	PurchaseDate     time.Time
	Earnings         decimal.Decimal
	ROI              float64
}

type PortfolioSummary struct {
	TotalInvested   decimal.Decimal
	TotalEarnings   decimal.Decimal
	TotalProperties int
	TotalTokens     int64
	Investments     []InvestmentDetail
}

// SummarizePortfolio reduces a user's investments into aggregate totals.
// Property.Images is expected to be loaded in position order. Investments
// in the same property count once towards TotalProperties.
func SummarizePortfolio(investments []models.Investment) PortfolioSummary {
	summary := PortfolioSummary{
		TotalInvested: decimal.Zero,
		TotalEarnings: decimal.Zero,
		Investments:   make([]InvestmentDetail, 0, len(investments)),
	}
	properties := make(map[string]struct{}, len(investments))

	for _, inv := range investments {
		summary.TotalInvested = summary.TotalInvested.Add(inv.InvestmentAmount)
		summary.TotalEarnings = summary.TotalEarnings.Add(inv.Earnings)
		summary.TotalTokens += inv.TokensOwned
		properties[inv.PropertyID] = struct{}{}

		var image *string
		if len(inv.Property.Images) > 0 {
			url := inv.Property.Images[0].URL
			image = &url
		}
		summary.Investments = append(summary.Investments, InvestmentDetail{
			ID:               inv.ID,
			PropertyID:       inv.PropertyID,
			PropertyTitle:    inv.Property.Title,
			PropertyImage:    image,
			TokensOwned:      inv.TokensOwned,
			InvestmentAmount: inv.InvestmentAmount,
			PurchaseDate:     inv.PurchaseDate,
			Earnings:         inv.Earnings,
			ROI:              inv.ROI,
		})
	}

	summary.TotalProperties = len(properties)
	return summary
}
