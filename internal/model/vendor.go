package model

import (
	"fmt"
	"time"
)

// Vendor содержит накопительные денежные показатели продавца.
//
// Инвариант: TotalEarnings == AvailableBalance + PendingBalance + ReservedBalance +
// TotalPaidOut + TotalTransactionFees.
type Vendor struct {
	ID               int64
	TotalEarnings    int64
	AvailableBalance int64
	PendingBalance   int64
	// ReservedBalance содержит сумму заявок на выплату, ещё не достигших конечного статуса.
	ReservedBalance      int64
	TotalPaidOut         int64
	TotalTransactionFees int64
	UpdatedAt            time.Time
}

// Balanced проверяет денежный инвариант продавца.
func (v *Vendor) Balanced() bool {
	if v.AvailableBalance < 0 || v.PendingBalance < 0 || v.ReservedBalance < 0 ||
		v.TotalPaidOut < 0 || v.TotalTransactionFees < 0 {
		return false
	}
	return v.TotalEarnings == v.AvailableBalance+v.PendingBalance+v.ReservedBalance+
		v.TotalPaidOut+v.TotalTransactionFees
}

// CreditPending учитывает новое начисление в ожидающем балансе.
func (v *Vendor) CreditPending(net int64) error {
	if net < 0 {
		return fmt.Errorf("%w: negative net earnings %d", ErrInvalidInput, net)
	}
	v.PendingBalance += net
	v.TotalEarnings += net
	return nil
}

// Mature переносит сумму из ожидающего баланса в доступный.
func (v *Vendor) Mature(amount int64) error {
	if amount < 0 || amount > v.PendingBalance {
		return fmt.Errorf("%w: cannot mature %d of pending %d", ErrInvalidInput, amount, v.PendingBalance)
	}
	v.PendingBalance -= amount
	v.AvailableBalance += amount
	return nil
}

// Reserve списывает сумму заявки с доступного баланса в резерв.
func (v *Vendor) Reserve(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: payout amount must be positive", ErrInvalidInput)
	}
	if amount > v.AvailableBalance {
		return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientBalance, amount, v.AvailableBalance)
	}
	v.AvailableBalance -= amount
	v.ReservedBalance += amount
	return nil
}

// Release возвращает зарезервированную сумму в доступный баланс.
func (v *Vendor) Release(amount int64) error {
	if amount < 0 || amount > v.ReservedBalance {
		return fmt.Errorf("%w: cannot release %d of reserved %d", ErrInvalidInput, amount, v.ReservedBalance)
	}
	v.ReservedBalance -= amount
	v.AvailableBalance += amount
	return nil
}

// Settle закрывает резерв выплаченной суммой: продавец получает amount - fee, комиссия перевода
// учитывается отдельно.
func (v *Vendor) Settle(amount, fee int64) error {
	if amount < 0 || amount > v.ReservedBalance {
		return fmt.Errorf("%w: cannot settle %d of reserved %d", ErrInvalidInput, amount, v.ReservedBalance)
	}
	if fee < 0 || fee > amount {
		return fmt.Errorf("%w: transaction fee %d out of range", ErrInvalidInput, fee)
	}
	v.ReservedBalance -= amount
	v.TotalPaidOut += amount - fee
	v.TotalTransactionFees += fee
	return nil
}
