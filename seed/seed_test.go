package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"realestate-token-api/config"
	"realestate-token-api/database"
	"realestate-token-api/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", URL: ":memory:"}, false)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })
	return db
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	return n
}

func TestLoadAndApplyDemoFixtures(t *testing.T) {
	f, err := Load("testdata/demo.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(f.Users) != 3 || len(f.Properties) != 2 {
		t.Fatalf("Unexpected fixture sizes: %d users, %d properties", len(f.Users), len(f.Properties))
	}

	db := newTestDB(t)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	deps := Deps{HashCost: bcrypt.MinCost, Now: func() time.Time { return fixed }}

	if err := Apply(context.Background(), db, f, deps); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	var john models.User
	if err := db.Where("email = ?", "john@example.com").First(&john).Error; err != nil {
		t.Fatalf("john not seeded: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(john.PasswordHash), []byte("password123")); err != nil {
		t.Error("Seeded password does not verify")
	}
	if john.ReferralEarnings.StringFixed(2) != "50.00" || !john.KYCVerified {
		t.Errorf("Unexpected john: %+v", john)
	}

	var nyc models.Property
	if err := db.Preload("Features").Preload("Images").Where("title = ?", "Luxury Apartment in NYC").First(&nyc).Error; err != nil {
		t.Fatalf("property not seeded: %v", err)
	}
	if nyc.FundingProgress != 25 {
		t.Errorf("funding_progress = %v, want 25", nyc.FundingProgress)
	}
	if !strings.HasPrefix(nyc.Slug, "luxury-apartment-in-nyc-") {
		t.Errorf("slug = %q", nyc.Slug)
	}
	if len(nyc.Features) != 2 || len(nyc.Images) != 1 {
		t.Errorf("Expected 2 features and 1 image, got %d and %d", len(nyc.Features), len(nyc.Images))
	}

	var inv models.Investment
	if err := db.Where("user_id = ?", john.ID).First(&inv).Error; err != nil {
		t.Fatalf("investment not seeded: %v", err)
	}
	if !inv.PurchaseDate.Equal(fixed.AddDate(0, 0, -30)) {
		t.Errorf("purchase_date = %v", inv.PurchaseDate)
	}
	if got := count(t, db, &models.Transaction{}); got != 2 {
		t.Errorf("Expected 2 transactions, got %d", got)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	f, err := Load("testdata/demo.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	db := newTestDB(t)
	deps := Deps{HashCost: bcrypt.MinCost}

	for i := 0; i < 2; i++ {
		if err := Apply(context.Background(), db, f, deps); err != nil {
			t.Fatalf("Apply #%d failed: %v", i+1, err)
		}
	}

	checks := []struct {
		model any
		want  int64
	}{
		{&models.User{}, 3},
		{&models.Property{}, 2},
		{&models.PropertyFeature{}, 4},
		{&models.Investment{}, 2},
		{&models.Transaction{}, 2},
	}
	for _, c := range checks {
		if got := count(t, db, c.model); got != c.want {
			t.Errorf("%T: got %d rows, want %d", c.model, got, c.want)
		}
	}
}

func TestParseRejectsBadFixtures(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "users:\n  - email: a@b.c\n    password: x\n    nickname: y\n"},
		{"missing password", "users:\n  - email: a@b.c\n"},
		{"bad amount", "transactions:\n  - user: a@b.c\n    type: deposit\n    amount: lots\n"},
		{"oversold property", "properties:\n  - title: X\n    total_tokens: 10\n    available_tokens: 11\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestApplyUnknownReference(t *testing.T) {
	f, err := Parse([]byte("investments:\n  - user: ghost@example.com\n    property: Nowhere\n    tokens_owned: 1\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := Apply(context.Background(), newTestDB(t), f, Deps{HashCost: bcrypt.MinCost}); err == nil {
		t.Error("Expected an error for an unknown user")
	}
}
