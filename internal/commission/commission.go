// Package commission рассчитывает комиссию платформы и чистое начисление продавцу.
package commission

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-payouts/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Split содержит результат разделения валовой суммы между платформой и продавцом.
type Split struct {
	PlatformFee int64
	NetEarnings int64
}

// Calculate делит валовую сумму gross (в минимальных единицах валюты) по проценту комиссии.
// Округляется только комиссия (половина вверх), чистое начисление получается вычитанием,
// поэтому PlatformFee + NetEarnings == gross всегда.
func Calculate(gross int64, percentage decimal.Decimal) (Split, error) {
	if gross < 0 {
		return Split{}, fmt.Errorf("%w: negative gross amount %d", model.ErrInvalidInput, gross)
	}
	if err := ValidatePercentage(percentage); err != nil {
		return Split{}, err
	}

	// Shift(-2) делит на 100 без потери точности.
	fee := decimal.NewFromInt(gross).Mul(percentage).Shift(-2).Round(0).IntPart()

	return Split{
		PlatformFee: fee,
		NetEarnings: gross - fee,
	}, nil
}

// ValidatePercentage проверяет, что процент находится в диапазоне [0, 100] и имеет не более
// двух знаков после запятой, как столбец NUMERIC(5,2), в котором он сохраняется.
func ValidatePercentage(percentage decimal.Decimal) error {
	if percentage.IsNegative() || percentage.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentage %s out of [0,100]", model.ErrInvalidInput, percentage)
	}
	if !percentage.Equal(percentage.Round(2)) {
		return fmt.Errorf("%w: percentage %s has more than two decimals", model.ErrInvalidInput, percentage)
	}
	return nil
}

// ParsePercentage разбирает процент комиссии из строки. Допускается не более двух знаков после запятой.
func ParsePercentage(v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: percentage %q", model.ErrInvalidInput, v)
	}
	if err := ValidatePercentage(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// Gross возвращает валовую сумму позиции заказа.
func Gross(price int64, quantity int64) (int64, error) {
	if price < 0 || quantity <= 0 {
		return 0, fmt.Errorf("%w: price %d, quantity %d", model.ErrInvalidInput, price, quantity)
	}
	if price > math.MaxInt64/quantity {
		return 0, fmt.Errorf("%w: gross amount overflow", model.ErrInvalidInput)
	}
	return price * quantity, nil
}
