package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StartAccrualScheduler runs the accrual job every Interval. The caller
// shuts the returned scheduler down on exit.
func (s *AccrualService) StartAccrualScheduler() (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.Interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, err := s.Run(ctx); err != nil {
				zap.L().Error("Scheduled accrual failed", zap.Error(err))
			}
		}),
		gocron.WithName("investment-accrual"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule accrual job: %w", err)
	}

	sched.Start()
	zap.L().Info("Accrual scheduler started", zap.Duration("interval", s.Interval))
	return sched, nil
}
