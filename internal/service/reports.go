package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-payouts/internal/commission"
	"github.com/mmeshcher/marketplace-payouts/internal/model"
)

const topEarningVendors = 5

var reportPeriods = map[string]time.Duration{
	"7d":   7 * 24 * time.Hour,
	"30d":  30 * 24 * time.Hour,
	"90d":  90 * 24 * time.Hour,
	"365d": 365 * 24 * time.Hour,
}

// PlatformReport возвращает отчёт о доходах платформы за период: 7d, 30d, 90d, 365d или all.
func (s *Service) PlatformReport(ctx context.Context, period string) (*model.PlatformReport, error) {
	if period == "" {
		period = "30d"
	}

	to := s.now()
	var from *time.Time
	if period != "all" {
		d, ok := reportPeriods[period]
		if !ok {
			return nil, fmt.Errorf("%w: unknown report period %q", model.ErrInvalidInput, period)
		}
		f := to.Add(-d)
		from = &f
	}

	report, err := s.repo.GetPlatformReport(ctx, from, to, topEarningVendors)
	if err != nil {
		return nil, err
	}
	if report.TotalOrders > 0 {
		report.AvgOrderValue = report.TotalGross / report.TotalOrders
	}
	return report, nil
}

// GetCommissionRate возвращает текущую ставку комиссии платформы.
func (s *Service) GetCommissionRate(ctx context.Context) (*model.CommissionRate, error) {
	return s.repo.GetCommissionRate(ctx)
}

// SetCommissionRate сохраняет новую версию ставки комиссии. Уже созданные начисления не пересчитываются.
func (s *Service) SetCommissionRate(ctx context.Context, percentage decimal.Decimal, adminID int64) (*model.CommissionRate, error) {
	if err := commission.ValidatePercentage(percentage); err != nil {
		return nil, err
	}
	rate, err := s.repo.SetCommissionRate(ctx, percentage, adminID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("commission rate changed",
		zap.String("percentage", rate.Percentage.String()),
		zap.Int64("version", rate.Version),
		zap.Int64("adminID", adminID),
	)
	return rate, nil
}
