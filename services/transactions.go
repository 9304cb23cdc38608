package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"realestate-token-api/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TransactionService struct {
	DB     *gorm.DB
	Events EventPublisher

	now func() time.Time
}

func NewTransactionService(db *gorm.DB, events EventPublisher) *TransactionService {
	return &TransactionService{DB: db, Events: events, now: time.Now}
}

type CreateTransactionInput struct {
	Type    string          `json:"type"`
	Amount  decimal.Decimal `json:"amount"`
	Status  string          `json:"status"`
	Details string          `json:"details"`
}

// UpdateTransactionInput only reaches mutable columns; type, amount and date
// are fixed at insert.
type UpdateTransactionInput struct {
	Status  *string `json:"status"`
	Details *string `json:"details"`
}

// List returns the caller's transactions, newest first.
func (s *TransactionService) List(ctx context.Context, caller Identity) ([]models.Transaction, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	var transactions []models.Transaction
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", caller.UserID).
		Order("date DESC, id DESC").
		Find(&transactions).Error
	if err != nil {
		return nil, fmt.Errorf("unable to list transactions: %w", err)
	}
	return transactions, nil
}

func (s *TransactionService) Get(ctx context.Context, caller Identity, id string) (*models.Transaction, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	return findTransaction(s.DB.WithContext(ctx), id, caller.UserID)
}

// Create appends a ledger entry for the caller. The owner is always the
// caller and the date is stamped server-side.
func (s *TransactionService) Create(ctx context.Context, caller Identity, input CreateTransactionInput) (*models.Transaction, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	if input.Status == "" {
		input.Status = models.TransactionStatusPending
	}

	verr := &ValidationError{}
	if !oneOf(input.Type, models.TransactionTypes) {
		verr.Add("type", "oneof", "Value must be one of: "+strings.Join(models.TransactionTypes, " "))
	}
	if !oneOf(input.Status, models.TransactionStatuses) {
		verr.Add("status", "oneof", "Value must be one of: "+strings.Join(models.TransactionStatuses, " "))
	}
	checkMoney(verr, "amount", input.Amount, false)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	t := &models.Transaction{
		ID:      uuid.NewString(),
		UserID:  caller.UserID,
		Type:    input.Type,
		Amount:  input.Amount,
		Date:    s.now().UTC(),
		Status:  input.Status,
		Details: input.Details,
	}
	if err := s.DB.WithContext(ctx).Create(t).Error; err != nil {
		zap.L().Error("Failed to create transaction", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, fmt.Errorf("unable to create transaction: %w", err)
	}

	zap.L().Info("Transaction created",
		zap.String("transaction_id", t.ID),
		zap.String("user_id", t.UserID),
		zap.String("type", t.Type),
		zap.String("amount", t.Amount.StringFixed(2)))
	publishTransaction(ctx, s.Events, t)
	return t, nil
}

// Update changes status and/or details. Staff only.
func (s *TransactionService) Update(ctx context.Context, caller Identity, id string, input UpdateTransactionInput) (*models.Transaction, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	if input.Status != nil && !oneOf(*input.Status, models.TransactionStatuses) {
		return nil, invalid("status", "oneof", "Value must be one of: "+strings.Join(models.TransactionStatuses, " "))
	}

	db := s.DB.WithContext(ctx)
	t, err := findTransaction(db, id, "")
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Status != nil {
		t.Status = *input.Status
		updates["status"] = t.Status
	}
	if input.Details != nil {
		t.Details = *input.Details
		updates["details"] = t.Details
	}
	if len(updates) == 0 {
		return t, nil
	}
	if err := db.Model(&models.Transaction{ID: t.ID}).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("unable to update transaction: %w", err)
	}

	zap.L().Info("Transaction updated",
		zap.String("transaction_id", t.ID),
		zap.String("status", t.Status),
		zap.String("by", caller.UserID))
	return t, nil
}

// Delete removes a transaction. Staff only.
func (s *TransactionService) Delete(ctx context.Context, caller Identity, id string) error {
	if err := requireStaff(caller); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return notFound("transaction", id)
	}
	res := s.DB.WithContext(ctx).Delete(&models.Transaction{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("unable to delete transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("transaction", id)
	}
	zap.L().Info("Transaction deleted", zap.String("transaction_id", id), zap.String("by", caller.UserID))
	return nil
}

func findTransaction(db *gorm.DB, id, userID string) (*models.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound("transaction", id)
	}
	query := db.Where("id = ?", id)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	var t models.Transaction
	if err := query.First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("transaction", id)
		}
		return nil, fmt.Errorf("unable to query transaction: %w", err)
	}
	return &t, nil
}
