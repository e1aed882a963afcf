// Package model содержит доменные сущности сервиса выплат продавцам маркетплейса.
//
// Все денежные суммы хранятся в минимальных единицах валюты (копейках, центах).
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EarningStatus описывает статус начисления продавцу.
type EarningStatus string

const (
	EarningStatusPending   EarningStatus = "pending"
	EarningStatusAvailable EarningStatus = "available"
	EarningStatusPaidOut   EarningStatus = "paid_out"
)

// VendorEarning описывает начисление продавцу по одной позиции заказа.
type VendorEarning struct {
	ID          int64
	VendorID    int64
	OrderID     int64
	OrderItemID int64
	GrossAmount int64
	// PlatformFeePercentage фиксируется при создании и больше не пересчитывается.
	PlatformFeePercentage decimal.Decimal
	CommissionVersion     int64
	PlatformFee           int64
	NetEarnings           int64
	Status                EarningStatus
	EarningDate           time.Time
	AvailableDate         time.Time
	PaidOutAt             *time.Time
	PayoutRequestID       *int64
}

// PayoutRequest описывает заявку продавца на вывод доступного баланса.
type PayoutRequest struct {
	ID              int64
	VendorID        int64
	RequestedAmount int64
	// AvailableBalance фиксирует доступный баланс на момент создания заявки.
	AvailableBalance int64
	Status           PayoutStatus
	ReviewedBy       *int64
	ReviewedAt       *time.Time
	AdminNotes       string
	PaymentReference string
	TransferID       string
	TransactionFee   int64
	FailureReason    string
	CompletedAt      *time.Time
	FailedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PayoutHistory описывает неизменяемую запись о завершённой выплате.
type PayoutHistory struct {
	ID               int64
	PayoutRequestID  int64
	VendorID         int64
	Amount           int64
	TransactionFee   int64
	NetAmount        int64
	Status           PayoutStatus
	PaymentReference string
	CreatedAt        time.Time
}

// CommissionRate описывает версионированное значение комиссии платформы в процентах.
type CommissionRate struct {
	Percentage decimal.Decimal
	Version    int64
	UpdatedBy  *int64
	UpdatedAt  time.Time
}

// EarningsSummary содержит сводку начислений продавца.
type EarningsSummary struct {
	VendorID         int64
	TotalEarnings    int64
	AvailableBalance int64
	PendingBalance   int64
	ReservedBalance  int64
	TotalPaidOut     int64
	ConfirmedOrders  int64
	PendingOrders    int64
}

// VendorEarningsTotal содержит сумму чистых начислений продавца за период.
type VendorEarningsTotal struct {
	VendorID    int64
	NetEarnings int64
	Orders      int64
}

// PlatformReport содержит отчёт о доходах платформы за период.
type PlatformReport struct {
	From                  *time.Time
	To                    time.Time
	TotalPlatformEarnings int64
	TotalVendorEarnings   int64
	TotalGross            int64
	TotalOrders           int64
	AvgOrderValue         int64
	TopEarningVendors     []VendorEarningsTotal
}

// PayoutFilter задаёт условия выборки заявок на выплату.
type PayoutFilter struct {
	VendorID *int64
	Status   *PayoutStatus
	Limit    int
}
