// Package seed loads demo fixtures from YAML into an empty or partly
// populated database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"realestate-token-api/models"
	"realestate-token-api/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v2"
	"gorm.io/gorm"
)

type File struct {
	Users        []User        `yaml:"users"`
	Properties   []Property    `yaml:"properties"`
	Investments  []Investment  `yaml:"investments"`
	Transactions []Transaction `yaml:"transactions"`
}

type User struct {
	Email            string `yaml:"email"`
	Password         string `yaml:"password"`
	FirstName        string `yaml:"first_name"`
	LastName         string `yaml:"last_name"`
	KYCVerified      bool   `yaml:"kyc_verified"`
	WalletAddress    string `yaml:"wallet_address"`
	ReferralCode     string `yaml:"referral_code"`
	ReferralEarnings string `yaml:"referral_earnings"`
	IsStaff          bool   `yaml:"is_staff"`
}

type Property struct {
	Title           string   `yaml:"title"`
	Location        string   `yaml:"location"`
	Price           string   `yaml:"price"`
	PricePerToken   string   `yaml:"price_per_token"`
	TotalTokens     int64    `yaml:"total_tokens"`
	AvailableTokens int64    `yaml:"available_tokens"`
	Description     string   `yaml:"description"`
	ROI             float64  `yaml:"roi"`
	RentalYield     float64  `yaml:"rental_yield"`
	Type            string   `yaml:"type"`
	Status          string   `yaml:"status"`
	Images          []string `yaml:"images"`
	Features        []string `yaml:"features"`
}

// Investment and Transaction reference users by email and properties by title.
type Investment struct {
	User             string  `yaml:"user"`
	Property         string  `yaml:"property"`
	TokensOwned      int64   `yaml:"tokens_owned"`
	InvestmentAmount string  `yaml:"investment_amount"`
	DaysAgo          int     `yaml:"days_ago"`
	Earnings         string  `yaml:"earnings"`
	ROI              float64 `yaml:"roi"`
}

type Transaction struct {
	User    string `yaml:"user"`
	Type    string `yaml:"type"`
	Amount  string `yaml:"amount"`
	DaysAgo int    `yaml:"days_ago"`
	Status  string `yaml:"status"`
	Details string `yaml:"details"`
}

// Deps carries the knobs Apply needs from the caller.
type Deps struct {
	HashCost int
	Now      func() time.Time
}

func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	check := func(what, raw string) error {
		if raw == "" {
			return nil
		}
		if _, err := decimal.NewFromString(raw); err != nil {
			return fmt.Errorf("invalid amount %q for %s", raw, what)
		}
		return nil
	}
	for _, u := range f.Users {
		if u.Email == "" || u.Password == "" {
			return fmt.Errorf("seed user needs email and password")
		}
		if err := check(u.Email, u.ReferralEarnings); err != nil {
			return err
		}
	}
	for _, p := range f.Properties {
		if p.TotalTokens <= 0 || p.AvailableTokens < 0 || p.AvailableTokens > p.TotalTokens {
			return fmt.Errorf("property %q has an invalid token supply", p.Title)
		}
		for _, raw := range []string{p.Price, p.PricePerToken} {
			if err := check(p.Title, raw); err != nil {
				return err
			}
		}
	}
	for _, inv := range f.Investments {
		for _, raw := range []string{inv.InvestmentAmount, inv.Earnings} {
			if err := check(inv.User+" / "+inv.Property, raw); err != nil {
				return err
			}
		}
	}
	for _, t := range f.Transactions {
		if err := check(t.User, t.Amount); err != nil {
			return err
		}
	}
	return nil
}

// Apply inserts every fixture that is not already present. Users match by
// email and properties by title. Investments and transactions are only
// inserted together with a user created in the same run, so reapplying a
// file never duplicates them.
func Apply(ctx context.Context, db *gorm.DB, f *File, deps Deps) error {
	if deps.HashCost == 0 {
		deps.HashCost = bcrypt.DefaultCost
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	now := deps.Now().UTC()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make(map[string]*models.User, len(f.Users))
		created := make(map[string]bool, len(f.Users))
		for _, u := range f.Users {
			user, isNew, err := ensureUser(tx, u, deps.HashCost, now)
			if err != nil {
				return err
			}
			users[user.Email] = user
			created[user.Email] = isNew
		}

		properties := make(map[string]*models.Property, len(f.Properties))
		for _, p := range f.Properties {
			property, err := ensureProperty(tx, p)
			if err != nil {
				return err
			}
			properties[property.Title] = property
		}

		for _, inv := range f.Investments {
			user, ok := users[inv.User]
			if !ok {
				return fmt.Errorf("investment references unknown user %q", inv.User)
			}
			property, ok := properties[inv.Property]
			if !ok {
				return fmt.Errorf("investment references unknown property %q", inv.Property)
			}
			if !created[user.Email] {
				continue
			}
			row := models.Investment{
				ID:               uuid.NewString(),
				UserID:           user.ID,
				PropertyID:       property.ID,
				TokensOwned:      inv.TokensOwned,
				InvestmentAmount: amount(inv.InvestmentAmount),
				PurchaseDate:     now.AddDate(0, 0, -inv.DaysAgo),
				Earnings:         amount(inv.Earnings),
				ROI:              inv.ROI,
			}
			if err := tx.Omit("Property").Create(&row).Error; err != nil {
				return fmt.Errorf("failed to seed investment for %s: %w", inv.User, err)
			}
		}

		for _, t := range f.Transactions {
			user, ok := users[t.User]
			if !ok {
				return fmt.Errorf("transaction references unknown user %q", t.User)
			}
			if !created[user.Email] {
				continue
			}
			status := t.Status
			if status == "" {
				status = models.TransactionStatusCompleted
			}
			row := models.Transaction{
				ID:      uuid.NewString(),
				UserID:  user.ID,
				Type:    t.Type,
				Amount:  amount(t.Amount),
				Date:    now.AddDate(0, 0, -t.DaysAgo),
				Status:  status,
				Details: t.Details,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to seed transaction for %s: %w", t.User, err)
			}
		}

		zap.L().Info("Seed applied",
			zap.Int("users", len(f.Users)),
			zap.Int("properties", len(f.Properties)),
			zap.Int("investments", len(f.Investments)),
			zap.Int("transactions", len(f.Transactions)))
		return nil
	})
}

func ensureUser(tx *gorm.DB, u User, hashCost int, now time.Time) (*models.User, bool, error) {
	var existing models.User
	err := tx.Where("email = ?", u.Email).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up %s: %w", u.Email, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), hashCost)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash password for %s: %w", u.Email, err)
	}
	user := models.User{
		ID:               uuid.NewString(),
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		PasswordHash:     string(hash),
		KYCVerified:      u.KYCVerified,
		WalletAddress:    optional(u.WalletAddress),
		ReferralCode:     optional(u.ReferralCode),
		ReferralEarnings: amount(u.ReferralEarnings),
		IsActive:         true,
		IsStaff:          u.IsStaff,
		DateJoined:       now,
	}
	if err := tx.Omit("Investments", "Transactions").Create(&user).Error; err != nil {
		return nil, false, fmt.Errorf("failed to seed user %s: %w", u.Email, err)
	}
	return &user, true, nil
}

func ensureProperty(tx *gorm.DB, p Property) (*models.Property, error) {
	var existing models.Property
	err := tx.Where("title = ?", p.Title).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up %s: %w", p.Title, err)
	}

	property := models.Property{
		ID:              uuid.NewString(),
		Title:           p.Title,
		Location:        p.Location,
		Price:           amount(p.Price),
		PricePerToken:   amount(p.PricePerToken),
		TotalTokens:     p.TotalTokens,
		AvailableTokens: p.AvailableTokens,
		Description:     p.Description,
		ROI:             p.ROI,
		RentalYield:     p.RentalYield,
		Type:            p.Type,
		Status:          p.Status,
		FundingProgress: models.ComputeFundingProgress(p.TotalTokens, p.AvailableTokens),
	}
	property.Slug = services.PropertySlug(property.Title, property.ID)
	for i, url := range p.Images {
		property.Images = append(property.Images, models.PropertyImage{
			ID: uuid.NewString(), PropertyID: property.ID, URL: url, Position: i,
		})
	}
	for i, feature := range p.Features {
		property.Features = append(property.Features, models.PropertyFeature{
			ID: uuid.NewString(), PropertyID: property.ID, Feature: feature, Position: i,
		})
	}
	if err := tx.Create(&property).Error; err != nil {
		return nil, fmt.Errorf("failed to seed property %s: %w", p.Title, err)
	}
	return &property, nil
}

// amount parses a value already checked by validate.
func amount(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(raw).Round(2)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
