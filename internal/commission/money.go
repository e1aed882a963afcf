package commission

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-payouts/internal/model"
)

// ToMinor переводит сумму в основных единицах валюты (рублях) в минимальные (копейки).
// Суммы с дробными копейками отклоняются.
func ToMinor(amount decimal.Decimal) (int64, error) {
	minor := amount.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount %s has fractional minor units", model.ErrInvalidInput, amount)
	}
	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || minor.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, fmt.Errorf("%w: amount %s out of range", model.ErrInvalidInput, amount)
	}
	return minor.IntPart(), nil
}

// ToMajor переводит сумму в минимальных единицах в основные для отображения.
func ToMajor(minor int64) float64 {
	f, _ := decimal.NewFromInt(minor).Shift(-2).Float64()
	return f
}
