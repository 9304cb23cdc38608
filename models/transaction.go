package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeInvestment = "investment"
	TransactionTypeEarning    = "earning"
	TransactionTypeSale       = "sale"
)

const (
	TransactionStatusCompleted = "completed"
	TransactionStatusPending   = "pending"
	TransactionStatusFailed    = "failed"
)

var TransactionTypes = []string{
	TransactionTypeDeposit,
	TransactionTypeWithdrawal,
	TransactionTypeInvestment,
	TransactionTypeEarning,
	TransactionTypeSale,
}

var TransactionStatuses = []string{TransactionStatusCompleted, TransactionStatusPending, TransactionStatusFailed}

// Transaction is an append-only money-movement entry. Type, amount and date
// never change after insert.
type Transaction struct {
	ID      string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID  string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Type    string          `gorm:"column:type;size:20;not null;index;<-:create" json:"type"`
	Amount  decimal.Decimal `gorm:"type:decimal(15,2);not null;<-:create" json:"amount"`
	Date    time.Time       `gorm:"not null;index;<-:create" json:"date"`
	Status  string          `gorm:"size:20;not null" json:"status"`
	Details string          `gorm:"type:text" json:"details"`
}
