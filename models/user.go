package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User is the identity record. Email is the login key.
type User struct {
	ID               string          `gorm:"primaryKey;type:uuid" json:"id"`
	Email            string          `gorm:"uniqueIndex;size:254;not null" json:"email"`
	FirstName        string          `gorm:"size:150" json:"first_name"`
	LastName         string          `gorm:"size:150" json:"last_name"`
	PasswordHash     string          `gorm:"not null" json:"-"`
	AvatarURL        *string         `json:"avatar,omitempty"`
	KYCVerified      bool            `gorm:"not null;default:false" json:"kyc_verified"`
	WalletAddress    *string         `gorm:"size:255" json:"wallet_address,omitempty"`
	ReferralCode     *string         `gorm:"uniqueIndex;size:20" json:"referral_code,omitempty"`
	ReferralEarnings decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"referral_earnings"`
	IsActive         bool            `gorm:"not null;default:true" json:"is_active"`
	IsStaff          bool            `gorm:"not null;default:false" json:"is_staff"`
	DateJoined       time.Time       `gorm:"not null" json:"date_joined"`
	LastLogin        *time.Time      `json:"last_login,omitempty"`

	Investments  []Investment  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Transactions []Transaction `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`

	Timestamps
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
