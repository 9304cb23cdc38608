package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"realestate-token-api/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvestmentService owns the investment ledger: purchases, sales, earnings
// accrual and portfolio reads.
type InvestmentService struct {
	DB     *gorm.DB
	Events EventPublisher

	now func() time.Time
}

func NewInvestmentService(db *gorm.DB, events EventPublisher) *InvestmentService {
	return &InvestmentService{DB: db, Events: events, now: time.Now}
}

type CreateInvestmentInput struct {
	PropertyID       string           `json:"property"`
	TokensOwned      int64            `json:"tokens_owned"`
	InvestmentAmount *decimal.Decimal `json:"investment_amount"`
	Earnings         *decimal.Decimal `json:"earnings"`
	ROI              *float64         `json:"roi"`
}

// AccrualInput is the update contract for earnings bookkeeping. Nil fields
// are left untouched.
type AccrualInput struct {
	Earnings *decimal.Decimal `json:"earnings"`
	ROI      *float64         `json:"roi"`
}

// SaleResult describes a completed sale. Investment is nil when the sale
// closed the position.
type SaleResult struct {
	Investment  *models.Investment
	Transaction models.Transaction
}

// Create purchases tokens of a property for the caller. The token
// reservation, the investment row and its ledger entry are written in one
// database transaction; the reservation fails with ErrConflict when the
// property is not open or does not have enough tokens left.
func (s *InvestmentService) Create(ctx context.Context, caller Identity, input CreateInvestmentInput) (*models.Investment, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	if input.PropertyID == "" {
		verr.Add("property", "required", "This field is required")
	}
	if input.TokensOwned <= 0 {
		verr.Add("tokens_owned", "gt", "Value must be greater than 0")
	}
	if input.InvestmentAmount != nil {
		checkMoney(verr, "investment_amount", *input.InvestmentAmount, false)
	}
	if input.Earnings != nil {
		checkMoney(verr, "earnings", *input.Earnings, true)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	var investment *models.Investment
	var entry *models.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property, err := findProperty(tx, input.PropertyID)
		if err != nil {
			return err
		}

		cost := property.PricePerToken.Mul(decimal.NewFromInt(input.TokensOwned))
		amount := cost
		if input.InvestmentAmount != nil {
			if !input.InvestmentAmount.Equal(cost) {
				return invalid("investment_amount", "mismatch",
					fmt.Sprintf("Must equal tokens_owned x price_per_token (%s)", cost.StringFixed(2)))
			}
			amount = *input.InvestmentAmount
		}

		if err := reserveTokens(tx, property, input.TokensOwned); err != nil {
			return err
		}

		now := s.now().UTC()
		investment = &models.Investment{
			ID:               uuid.NewString(),
			UserID:           caller.UserID,
			PropertyID:       property.ID,
			TokensOwned:      input.TokensOwned,
			InvestmentAmount: amount,
			PurchaseDate:     now,
			Earnings:         decimal.Zero,
		}
		if input.Earnings != nil {
			investment.Earnings = *input.Earnings
		}
		if input.ROI != nil {
			investment.ROI = *input.ROI
		}
		if err := tx.Omit(clause.Associations).Create(investment).Error; err != nil {
			return fmt.Errorf("unable to create investment: %w", err)
		}

		entry = &models.Transaction{
			ID:      uuid.NewString(),
			UserID:  caller.UserID,
			Type:    models.TransactionTypeInvestment,
			Amount:  amount,
			Date:    now,
			Status:  models.TransactionStatusCompleted,
			Details: "Investment in " + property.Title,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("unable to record transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		if !isClientError(err) {
			zap.L().Error("Failed to create investment",
				zap.String("user_id", caller.UserID),
				zap.String("property_id", input.PropertyID),
				zap.Error(err))
		}
		return nil, err
	}

	zap.L().Info("Investment created",
		zap.String("investment_id", investment.ID),
		zap.String("user_id", caller.UserID),
		zap.String("property_id", investment.PropertyID),
		zap.Int64("tokens", investment.TokensOwned),
		zap.String("amount", investment.InvestmentAmount.StringFixed(2)))

	publish(ctx, s.Events, InvestmentEventsStream, EventInvestmentCreated, InvestmentEvent{
		InvestmentID: investment.ID,
		UserID:       investment.UserID,
		PropertyID:   investment.PropertyID,
		Tokens:       investment.TokensOwned,
		Amount:       investment.InvestmentAmount.StringFixed(2),
	})
	publishTransaction(ctx, s.Events, entry)
	return investment, nil
}

// List returns the caller's own investments, oldest purchase first.
func (s *InvestmentService) List(ctx context.Context, caller Identity) ([]models.Investment, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	var investments []models.Investment
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", caller.UserID).
		Order("purchase_date ASC, id ASC").
		Find(&investments).Error
	if err != nil {
		return nil, fmt.Errorf("unable to list investments: %w", err)
	}
	return investments, nil
}

// Get returns one of the caller's investments. Investments owned by anyone
// else are reported as not found.
func (s *InvestmentService) Get(ctx context.Context, caller Identity, id string) (*models.Investment, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	return findInvestment(s.DB.WithContext(ctx), id, caller.UserID)
}

// Portfolio recomputes the caller's portfolio from the full investment set.
func (s *InvestmentService) Portfolio(ctx context.Context, caller Identity) (*PortfolioSummary, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	var investments []models.Investment
	err := s.DB.WithContext(ctx).
		Preload("Property").
		Preload("Property.Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("user_id = ?", caller.UserID).
		Order("purchase_date ASC, id ASC").
		Find(&investments).Error
	if err != nil {
		return nil, fmt.Errorf("unable to load portfolio: %w", err)
	}

	summary := SummarizePortfolio(investments)
	zap.L().Debug("Computed portfolio",
		zap.String("user_id", caller.UserID),
		zap.Int("investments", len(investments)))
	return &summary, nil
}

// Adjust is the staff entry point to UpdateAccrual.
func (s *InvestmentService) Adjust(ctx context.Context, caller Identity, id string, input AccrualInput) (*models.Investment, error) {
	inv, err := s.UpdateAccrual(ctx, caller, id, input)
	if err == nil {
		zap.L().Info("Investment adjusted", zap.String("investment_id", id), zap.String("by", caller.UserID))
	}
	return inv, err
}

// UpdateAccrual sets earnings and/or roi on an investment. The caller must
// be staff or a ServiceIdentity. Any increase in earnings is also credited
// to the owner's ledger as a completed earning transaction; the row is
// locked so concurrent passes cannot credit the same delta twice.
func (s *InvestmentService) UpdateAccrual(ctx context.Context, caller Identity, id string, input AccrualInput) (*models.Investment, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	verr := &ValidationError{}
	if input.Earnings == nil && input.ROI == nil {
		verr.Add("earnings", "required", "Provide earnings or roi")
	}
	if input.Earnings != nil {
		checkMoney(verr, "earnings", *input.Earnings, true)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	var investment *models.Investment
	var entry *models.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		investment, err = findInvestment(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id, "")
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if input.Earnings != nil {
			credit := input.Earnings.Sub(investment.Earnings)
			investment.Earnings = *input.Earnings
			updates["earnings"] = investment.Earnings

			if credit.IsPositive() {
				property, err := findProperty(tx, investment.PropertyID)
				if err != nil {
					return err
				}
				entry = &models.Transaction{
					ID:      uuid.NewString(),
					UserID:  investment.UserID,
					Type:    models.TransactionTypeEarning,
					Amount:  credit,
					Date:    s.now().UTC(),
					Status:  models.TransactionStatusCompleted,
					Details: "Earnings from " + property.Title,
				}
				if err := tx.Create(entry).Error; err != nil {
					return fmt.Errorf("unable to record transaction: %w", err)
				}
			}
		}
		if input.ROI != nil {
			investment.ROI = *input.ROI
			updates["roi"] = investment.ROI
		}

		if err := tx.Model(&models.Investment{ID: investment.ID}).Updates(updates).Error; err != nil {
			return fmt.Errorf("unable to update investment: %w", err)
		}
		return nil
	})
	if err != nil {
		if !isClientError(err) {
			zap.L().Error("Failed to update investment accrual", zap.String("investment_id", id), zap.Error(err))
		}
		return nil, err
	}

	zap.L().Info("Investment accrual updated",
		zap.String("investment_id", investment.ID),
		zap.String("by", caller.UserID),
		zap.String("earnings", investment.Earnings.StringFixed(2)),
		zap.Float64("roi", investment.ROI))
	publish(ctx, s.Events, InvestmentEventsStream, EventInvestmentAccrued, AccrualEvent{
		InvestmentID: investment.ID,
		Earnings:     investment.Earnings.StringFixed(2),
		ROI:          investment.ROI,
	})
	publishTransaction(ctx, s.Events, entry)
	return investment, nil
}

// Sell returns tokens from one of the caller's investments to the property
// supply. The investment amount shrinks pro rata; a position with no tokens
// left is removed.
func (s *InvestmentService) Sell(ctx context.Context, caller Identity, id string, tokens int64) (*SaleResult, error) {
	if err := requireAuthenticated(caller); err != nil {
		return nil, err
	}
	if tokens <= 0 {
		return nil, invalid("tokens", "gt", "Value must be greater than 0")
	}

	result := &SaleResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		investment, err := findInvestment(tx, id, caller.UserID)
		if err != nil {
			return err
		}
		if tokens > investment.TokensOwned {
			return invalid("tokens", "lte", fmt.Sprintf("Not enough tokens owned (%d)", investment.TokensOwned))
		}
		property, err := findProperty(tx, investment.PropertyID)
		if err != nil {
			return err
		}

		if err := releaseTokens(tx, property, tokens); err != nil {
			return err
		}

		remaining := investment.TokensOwned - tokens
		if remaining == 0 {
			if err := tx.Delete(&models.Investment{}, "id = ?", investment.ID).Error; err != nil {
				return fmt.Errorf("unable to close investment: %w", err)
			}
		} else {
			investment.InvestmentAmount = investment.InvestmentAmount.
				Mul(decimal.NewFromInt(remaining)).
				Div(decimal.NewFromInt(investment.TokensOwned)).
				Round(2)
			investment.TokensOwned = remaining
			err := tx.Model(&models.Investment{ID: investment.ID}).Updates(map[string]any{
				"tokens_owned":      investment.TokensOwned,
				"investment_amount": investment.InvestmentAmount,
			}).Error
			if err != nil {
				return fmt.Errorf("unable to update investment: %w", err)
			}
			result.Investment = investment
		}

		result.Transaction = models.Transaction{
			ID:      uuid.NewString(),
			UserID:  caller.UserID,
			Type:    models.TransactionTypeSale,
			Amount:  property.PricePerToken.Mul(decimal.NewFromInt(tokens)),
			Date:    s.now().UTC(),
			Status:  models.TransactionStatusCompleted,
			Details: fmt.Sprintf("Sale of %d tokens from %s", tokens, property.Title),
		}
		if err := tx.Create(&result.Transaction).Error; err != nil {
			return fmt.Errorf("unable to record transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		if !isClientError(err) {
			zap.L().Error("Failed to sell tokens", zap.String("investment_id", id), zap.Error(err))
		}
		return nil, err
	}

	zap.L().Info("Tokens sold",
		zap.String("investment_id", id),
		zap.String("user_id", caller.UserID),
		zap.Int64("tokens", tokens),
		zap.Bool("closed", result.Investment == nil))
	publish(ctx, s.Events, InvestmentEventsStream, EventInvestmentSold, InvestmentEvent{
		InvestmentID: id,
		UserID:       caller.UserID,
		Tokens:       tokens,
		Amount:       result.Transaction.Amount.StringFixed(2),
	})
	publishTransaction(ctx, s.Events, &result.Transaction)
	return result, nil
}

// reserveTokens decrements the supply with a single conditional UPDATE so
// concurrent purchases cannot oversell. SET expressions see the pre-update
// row.
func reserveTokens(tx *gorm.DB, property *models.Property, tokens int64) error {
	res := tx.Model(&models.Property{}).
		Where("id = ? AND status = ? AND available_tokens >= ?", property.ID, models.PropertyStatusAvailable, tokens).
		Updates(map[string]any{
			"available_tokens": gorm.Expr("available_tokens - ?", tokens),
			"funding_progress": gorm.Expr("(total_tokens - (available_tokens - ?)) * 100.0 / total_tokens", tokens),
			"status": gorm.Expr("CASE WHEN available_tokens = ? THEN ? ELSE status END",
				tokens, models.PropertyStatusFullyFunded),
		})
	if res.Error != nil {
		return fmt.Errorf("unable to reserve tokens: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	current, err := findProperty(tx, property.ID)
	if err != nil {
		return err
	}
	if current.Status != models.PropertyStatusAvailable {
		return fmt.Errorf("%w: property is %s and not open for investment", ErrConflict, current.Status)
	}
	return fmt.Errorf("%w: not enough tokens available (%d left)", ErrConflict, current.AvailableTokens)
}

// releaseTokens puts sold tokens back into the supply. A fully funded
// property becomes available again.
func releaseTokens(tx *gorm.DB, property *models.Property, tokens int64) error {
	res := tx.Model(&models.Property{}).
		Where("id = ? AND available_tokens + ? <= total_tokens", property.ID, tokens).
		Updates(map[string]any{
			"available_tokens": gorm.Expr("available_tokens + ?", tokens),
			"funding_progress": gorm.Expr("(total_tokens - (available_tokens + ?)) * 100.0 / total_tokens", tokens),
			"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
				models.PropertyStatusFullyFunded, models.PropertyStatusAvailable),
		})
	if res.Error != nil {
		return fmt.Errorf("unable to release tokens: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: property supply cannot take back %d tokens", ErrConflict, tokens)
	}
	return nil
}

func findProperty(db *gorm.DB, id string) (*models.Property, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound("property", id)
	}
	var property models.Property
	if err := db.First(&property, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("property", id)
		}
		return nil, fmt.Errorf("unable to query property: %w", err)
	}
	return &property, nil
}

// findInvestment loads an investment, scoped to userID when it is set.
func findInvestment(db *gorm.DB, id, userID string) (*models.Investment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound("investment", id)
	}
	query := db.Where("id = ?", id)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	var investment models.Investment
	if err := query.First(&investment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("investment", id)
		}
		return nil, fmt.Errorf("unable to query investment: %w", err)
	}
	return &investment, nil
}

func publishTransaction(ctx context.Context, p EventPublisher, t *models.Transaction) {
	if t == nil {
		return
	}
	publish(ctx, p, TransactionEventsStream, EventTransactionCreated, TransactionEvent{
		TransactionID: t.ID,
		UserID:        t.UserID,
		Type:          t.Type,
		Amount:        t.Amount.StringFixed(2),
		Status:        t.Status,
	})
}

// isClientError reports errors caused by the request rather than the server.
func isClientError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden)
}
