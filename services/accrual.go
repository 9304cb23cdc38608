package services

import (
	"context"
	"fmt"
	"time"

	"realestate-token-api/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const accrualBatchSize = 100

var secondsPerYear = decimal.NewFromInt(365 * 24 * 60 * 60)

// AccrualService credits rental income to investments. Each run accrues
// one interval's share of the property's annual rental yield.
type AccrualService struct {
	DB          *gorm.DB
	Investments *InvestmentService
	Interval    time.Duration
}

func NewAccrualService(db *gorm.DB, investments *InvestmentService, interval time.Duration) *AccrualService {
	return &AccrualService{DB: db, Investments: investments, Interval: interval}
}

// AccrualFor returns the earnings one interval adds to an investment,
// rounded to cents.
func AccrualFor(amount decimal.Decimal, rentalYield float64, interval time.Duration) decimal.Decimal {
	if rentalYield <= 0 || interval <= 0 || !amount.IsPositive() {
		return decimal.Zero
	}
	return amount.
		Mul(decimal.NewFromFloat(rentalYield)).
		Mul(decimal.NewFromInt(int64(interval / time.Second))).
		Div(decimal.NewFromInt(100)).
		Div(secondsPerYear).
		Round(2)
}

// ROIFor returns earnings as a percentage of the amount invested.
func ROIFor(earnings, amount decimal.Decimal) float64 {
	if !amount.IsPositive() {
		return 0
	}
	return earnings.Div(amount).Mul(decimal.NewFromInt(100)).Round(4).InexactFloat64()
}

// Run accrues every investment once and returns how many were credited.
// A failure on one investment is logged and does not stop the run.
func (s *AccrualService) Run(ctx context.Context) (int, error) {
	credited := 0
	caller := ServiceIdentity("accrual")
	var batch []models.Investment
	res := s.DB.WithContext(ctx).
		Preload("Property").
		FindInBatches(&batch, accrualBatchSize, func(tx *gorm.DB, _ int) error {
			for _, inv := range batch {
				delta := AccrualFor(inv.InvestmentAmount, inv.Property.RentalYield, s.Interval)
				if delta.IsZero() {
					continue
				}
				earnings := inv.Earnings.Add(delta)
				roi := ROIFor(earnings, inv.InvestmentAmount)
				if _, err := s.Investments.UpdateAccrual(ctx, caller, inv.ID, AccrualInput{Earnings: &earnings, ROI: &roi}); err != nil {
					zap.L().Warn("Failed to accrue investment", zap.String("investment_id", inv.ID), zap.Error(err))
					continue
				}
				credited++
			}
			return ctx.Err()
		})
	if res.Error != nil {
		return credited, fmt.Errorf("accrual run failed: %w", res.Error)
	}

	zap.L().Info("Accrual run finished", zap.Int("credited", credited), zap.Duration("interval", s.Interval))
	return credited, nil
}
