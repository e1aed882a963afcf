// Package service реализует бизнес-логику начислений продавцам и выплат.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-payouts/internal/metrics"
	"github.com/mmeshcher/marketplace-payouts/internal/model"
	"github.com/mmeshcher/marketplace-payouts/internal/transfer"
)

// ErrTransfersDisabled возвращается, если адрес провайдера переводов не настроен.
var ErrTransfersDisabled = errors.New("transfer provider not configured")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error
	// InTx выполняет fn в одной транзакции. Любая ошибка fn откатывает все изменения.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetEarningsSummary(ctx context.Context, vendorID int64) (*model.EarningsSummary, error)
	ListEarnings(ctx context.Context, vendorID int64, status *model.EarningStatus, limit int) ([]model.VendorEarning, error)
	ListVendorsWithDueEarnings(ctx context.Context, asOf time.Time, limit int) ([]int64, error)

	GetPayoutRequest(ctx context.Context, id int64) (*model.PayoutRequest, error)
	ListPayoutRequests(ctx context.Context, filter model.PayoutFilter) ([]model.PayoutRequest, error)
	ListPayoutHistory(ctx context.Context, vendorID int64) ([]model.PayoutHistory, error)

	GetCommissionRate(ctx context.Context) (*model.CommissionRate, error)
	SetCommissionRate(ctx context.Context, percentage decimal.Decimal, updatedBy int64) (*model.CommissionRate, error)
	GetPlatformReport(ctx context.Context, from *time.Time, to time.Time, top int) (*model.PlatformReport, error)
}

// Tx описывает операции, доступные внутри транзакции.
type Tx interface {
	// LockVendor блокирует строку продавца до конца транзакции, создавая её при отсутствии.
	LockVendor(ctx context.Context, vendorID int64) (*model.Vendor, error)
	UpdateVendor(ctx context.Context, v *model.Vendor) error

	InsertEarning(ctx context.Context, e *model.VendorEarning) error
	MaturePendingEarnings(ctx context.Context, vendorID int64, asOf time.Time) (amount int64, count int, err error)
	ListAvailableEarnings(ctx context.Context, vendorID int64) ([]model.VendorEarning, error)
	MarkEarningsPaidOut(ctx context.Context, ids []int64, vendorID, payoutRequestID int64, at time.Time) (int64, error)
	SumClaimedEarnings(ctx context.Context, payoutRequestID int64) (int64, error)

	GetPayoutRequest(ctx context.Context, id int64) (*model.PayoutRequest, error)
	InsertPayoutRequest(ctx context.Context, r *model.PayoutRequest) error
	// UpdatePayoutRequest обновляет заявку, только если её статус в БД всё ещё равен expected.
	UpdatePayoutRequest(ctx context.Context, r *model.PayoutRequest, expected model.PayoutStatus) (bool, error)
	InsertPayoutHistory(ctx context.Context, h *model.PayoutHistory) error
}

// TransferClient описывает клиент провайдера банковских переводов.
type TransferClient interface {
	GetTransfer(ctx context.Context, payoutRequestID int64) (*transfer.Transfer, int, time.Duration, error)
}

// Options содержит параметры бизнес-логики.
type Options struct {
	// HoldPeriod задаёт срок, через который начисление становится доступным к выплате.
	HoldPeriod time.Duration
	// MinimumPayout задаёт минимальную сумму заявки в минимальных единицах валюты.
	MinimumPayout        int64
	MaturationInterval   time.Duration
	TransferSyncInterval time.Duration
	Logger               *zap.Logger
	Metrics              *metrics.Metrics
}

// Service содержит бизнес-логику начислений и выплат.
type Service struct {
	repo      Repository
	transfers TransferClient
	opts      Options
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом провайдера переводов.
// transfers может быть nil, тогда синхронизация переводов отключена.
func NewService(repo Repository, transfers TransferClient, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		transfers: transfers,
		opts:      opts,
		logger:    logger,
		metrics:   opts.Metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
