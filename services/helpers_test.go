package services

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"realestate-token-api/config"
	"realestate-token-api/database"
	"realestate-token-api/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

func createUser(t *testing.T, db *gorm.DB, email string, staff bool) Identity {
	t.Helper()
	user := &models.User{
		ID:               uuid.NewString(),
		Email:            email,
		PasswordHash:     "unused",
		ReferralEarnings: decimal.Zero,
		IsActive:         true,
		IsStaff:          staff,
		DateJoined:       time.Now().UTC(),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}
	return Identity{UserID: user.ID, Email: user.Email, IsStaff: staff}
}

func createProperty(t *testing.T, db *gorm.DB, title, pricePerToken string, total, available int64) *models.Property {
	t.Helper()
	id := uuid.NewString()
	p := &models.Property{
		ID:              id,
		Slug:            PropertySlug(title, id),
		Title:           title,
		Location:        "Lisbon, Portugal",
		Price:           decimal.RequireFromString(pricePerToken).Mul(decimal.NewFromInt(total)),
		PricePerToken:   decimal.RequireFromString(pricePerToken),
		TotalTokens:     total,
		AvailableTokens: available,
		ROI:             8.5,
		RentalYield:     5,
		Type:            models.PropertyTypeResidential,
		Status:          models.PropertyStatusAvailable,
		FundingProgress: models.ComputeFundingProgress(total, available),
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to create property %s: %v", title, err)
	}
	return p
}

func reloadProperty(t *testing.T, db *gorm.DB, id string) *models.Property {
	t.Helper()
	var p models.Property
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("Failed to reload property: %v", err)
	}
	return &p
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	return n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func strPtr(s string) *string { return &s }

type publishedEvent struct {
	Stream string
	Type   string
	Data   any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, stream, eventType string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Stream: stream, Type: eventType, Data: data})
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeImageStore struct {
	uploaded []string
	deleted  []string
	err      error
}

func (f *fakeImageStore) Upload(_ context.Context, _ *multipart.FileHeader, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploaded = append(f.uploaded, key)
	return "https://cdn.test/" + key, nil
}

func (f *fakeImageStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func newFileHeader(t *testing.T, filename, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart failed: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("ReadForm failed: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["image"][0]
}
