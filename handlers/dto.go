package handlers

import (
	"time"

	"realestate-token-api/models"
	"realestate-token-api/services"

	"github.com/shopspring/decimal"
)

// money renders amounts with exactly two fractional digits.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type UserResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Avatar           *string    `json:"avatar"`
	KYCVerified      bool       `json:"kyc_verified"`
	WalletAddress    *string    `json:"wallet_address"`
	ReferralCode     *string    `json:"referral_code"`
	ReferralEarnings string     `json:"referral_earnings"`
	IsActive         bool       `json:"is_active"`
	IsStaff          bool       `json:"is_staff"`
	DateJoined       time.Time  `json:"date_joined"`
	LastLogin        *time.Time `json:"last_login"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Avatar:           u.AvatarURL,
		KYCVerified:      u.KYCVerified,
		WalletAddress:    u.WalletAddress,
		ReferralCode:     u.ReferralCode,
		ReferralEarnings: money(u.ReferralEarnings),
		IsActive:         u.IsActive,
		IsStaff:          u.IsStaff,
		DateJoined:       u.DateJoined,
		LastLogin:        u.LastLogin,
	}
}

type ImageResponse struct {
	ID       string `json:"id"`
	URL      string `json:"image"`
	Position int    `json:"position"`
}

type FeatureResponse struct {
	ID       string `json:"id"`
	Feature  string `json:"feature"`
	Position int    `json:"position"`
}

type PropertyResponse struct {
	ID              string            `json:"id"`
	Slug            string            `json:"slug"`
	Title           string            `json:"title"`
	Location        string            `json:"location"`
	Price           string            `json:"price"`
	PricePerToken   string            `json:"price_per_token"`
	TotalTokens     int64             `json:"total_tokens"`
	AvailableTokens int64             `json:"available_tokens"`
	Description     string            `json:"description"`
	ROI             float64           `json:"roi"`
	RentalYield     float64           `json:"rental_yield"`
	Type            string            `json:"type"`
	Status          string            `json:"status"`
	FundingProgress float64           `json:"funding_progress"`
	Images          []ImageResponse   `json:"images"`
	Features        []FeatureResponse `json:"features"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func toImageResponse(img models.PropertyImage) ImageResponse {
	return ImageResponse{ID: img.ID, URL: img.URL, Position: img.Position}
}

func toFeatureResponse(f models.PropertyFeature) FeatureResponse {
	return FeatureResponse{ID: f.ID, Feature: f.Feature, Position: f.Position}
}

func toPropertyResponse(p *models.Property) PropertyResponse {
	out := PropertyResponse{
		ID:              p.ID,
		Slug:            p.Slug,
		Title:           p.Title,
		Location:        p.Location,
		Price:           money(p.Price),
		PricePerToken:   money(p.PricePerToken),
		TotalTokens:     p.TotalTokens,
		AvailableTokens: p.AvailableTokens,
		Description:     p.Description,
		ROI:             p.ROI,
		RentalYield:     p.RentalYield,
		Type:            p.Type,
		Status:          p.Status,
		FundingProgress: p.FundingProgress,
		Images:          make([]ImageResponse, 0, len(p.Images)),
		Features:        make([]FeatureResponse, 0, len(p.Features)),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	for _, img := range p.Images {
		out.Images = append(out.Images, toImageResponse(img))
	}
	for _, f := range p.Features {
		out.Features = append(out.Features, toFeatureResponse(f))
	}
	return out
}

func toPropertyResponses(properties []models.Property) []PropertyResponse {
	out := make([]PropertyResponse, 0, len(properties))
	for i := range properties {
		out = append(out, toPropertyResponse(&properties[i]))
	}
	return out
}

type InvestmentResponse struct {
	ID               string    `json:"id"`
	User             string    `json:"user"`
	Property         string    `json:"property"`
	TokensOwned      int64     `json:"tokens_owned"`
	InvestmentAmount string    `json:"investment_amount"`
	PurchaseDate     time.Time `json:"purchase_date"`
	Earnings         string    `json:"earnings"`
	ROI              float64   `json:"roi"`
}

func toInvestmentResponse(inv *models.Investment) InvestmentResponse {
	return InvestmentResponse{
		ID:               inv.ID,
		User:             inv.UserID,
		Property:         inv.PropertyID,
		TokensOwned:      inv.TokensOwned,
		InvestmentAmount: money(inv.InvestmentAmount),
		PurchaseDate:     inv.PurchaseDate,
		Earnings:         money(inv.Earnings),
		ROI:              inv.ROI,
	}
}

type PortfolioInvestmentResponse struct {
	ID               string    `json:"id"`
	Property         string    `json:"property"`
	PropertyTitle    string    `json:"property_title"`
	PropertyImage    *string   `json:"property_image"`
	TokensOwned      int64     `json:"tokens_owned"`
	InvestmentAmount string    `json:"investment_amount"`
	PurchaseDate     time.Time `json:"purchase_date"`
	Earnings         string    `json:"earnings"`
	ROI              float64   `json:"roi"`
}

type PortfolioResponse struct {
	TotalInvested   string                        `json:"total_invested"`
	TotalEarnings   string                        `json:"total_earnings"`
	TotalProperties int                           `json:"total_properties"`
	TotalTokens     int64                         `json:"total_tokens"`
	Investments     []PortfolioInvestmentResponse `json:"investments"`
}

func toPortfolioResponse(s *services.PortfolioSummary) PortfolioResponse {
	out := PortfolioResponse{
		TotalInvested:   money(s.TotalInvested),
		TotalEarnings:   money(s.TotalEarnings),
		TotalProperties: s.TotalProperties,
		TotalTokens:     s.TotalTokens,
		Investments:     make([]PortfolioInvestmentResponse, 0, len(s.Investments)),
	}
	for _, d := range s.Investments {
		out.Investments = append(out.Investments, PortfolioInvestmentResponse{
			ID:               d.ID,
			Property:         d.PropertyID,
			PropertyTitle:    d.PropertyTitle,
			PropertyImage:    d.PropertyImage,
			TokensOwned:      d.TokensOwned,
			InvestmentAmount: money(d.InvestmentAmount),
			PurchaseDate:     d.PurchaseDate,
			Earnings:         money(d.Earnings),
			ROI:              d.ROI,
		})
	}
	return out
}

type TransactionResponse struct {
	ID      string    `json:"id"`
	User    string    `json:"user"`
	Type    string    `json:"type"`
	Amount  string    `json:"amount"`
	Date    time.Time `json:"date"`
	Status  string    `json:"status"`
	Details string    `json:"details"`
}

func toTransactionResponse(t *models.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:      t.ID,
		User:    t.UserID,
		Type:    t.Type,
		Amount:  money(t.Amount),
		Date:    t.Date,
		Status:  t.Status,
		Details: t.Details,
	}
}

type SaleResponse struct {
	Investment  *InvestmentResponse `json:"investment"`
	Transaction TransactionResponse `json:"transaction"`
}
