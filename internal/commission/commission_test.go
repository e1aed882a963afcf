package commission

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/marketplace-payouts/internal/model"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name       string
		gross      int64
		percentage string
		wantFee    int64
		wantNet    int64
	}{
		{name: "twenty percent", gross: 10000, percentage: "20", wantFee: 2000, wantNet: 8000},
		{name: "zero percent", gross: 10000, percentage: "0", wantFee: 0, wantNet: 10000},
		{name: "hundred percent", gross: 10000, percentage: "100", wantFee: 10000, wantNet: 0},
		{name: "zero gross", gross: 0, percentage: "15", wantFee: 0, wantNet: 0},
		{name: "half rounds up", gross: 250, percentage: "1", wantFee: 3, wantNet: 247},
		{name: "below half rounds down", gross: 249, percentage: "1", wantFee: 2, wantNet: 247},
		{name: "fractional percentage", gross: 999, percentage: "12.5", wantFee: 125, wantNet: 874},
		{name: "odd cents", gross: 1, percentage: "50", wantFee: 1, wantNet: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split, err := Calculate(tt.gross, decimal.RequireFromString(tt.percentage))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFee, split.PlatformFee)
			assert.Equal(t, tt.wantNet, split.NetEarnings)
			assert.Equal(t, tt.gross, split.PlatformFee+split.NetEarnings)
		})
	}
}

func TestCalculateSumInvariant(t *testing.T) {
	percentages := []string{"0", "0.01", "1", "2.5", "7.77", "12.34", "33.33", "50", "66.67", "99.99", "100"}

	for _, p := range percentages {
		pct := decimal.RequireFromString(p)
		for gross := int64(0); gross < 2000; gross += 7 {
			split, err := Calculate(gross, pct)
			if err != nil {
				t.Fatalf("Calculate(%d, %s) error: %v", gross, p, err)
			}
			if split.PlatformFee+split.NetEarnings != gross {
				t.Fatalf("Calculate(%d, %s): fee %d + net %d != gross", gross, p, split.PlatformFee, split.NetEarnings)
			}
			if split.PlatformFee < 0 || split.NetEarnings < 0 {
				t.Fatalf("Calculate(%d, %s): negative part %+v", gross, p, split)
			}
		}
	}
}

func TestCalculateInvalidInput(t *testing.T) {
	_, err := Calculate(-1, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = Calculate(100, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = Calculate(100, decimal.RequireFromString("100.01"))
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestValidatePercentage(t *testing.T) {
	for _, ok := range []string{"0", "0.01", "12.5", "12.34", "12.340", "100"} {
		assert.NoError(t, ValidatePercentage(decimal.RequireFromString(ok)), ok)
	}
	for _, bad := range []string{"-0.01", "100.01", "12.345", "0.001"} {
		assert.ErrorIs(t, ValidatePercentage(decimal.RequireFromString(bad)), model.ErrInvalidInput, bad)
	}

	// Сохранённый снимок ставки даёт ту же комиссию, что и при расчёте.
	_, err := Calculate(1000, decimal.RequireFromString("12.345"))
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestParsePercentage(t *testing.T) {
	p, err := ParsePercentage(" 12.5 ")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("12.5")))

	for _, bad := range []string{"", "abc", "12.345", "-1", "101"} {
		_, err := ParsePercentage(bad)
		assert.ErrorIs(t, err, model.ErrInvalidInput, bad)
	}
}

func TestGross(t *testing.T) {
	g, err := Gross(1250, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), g)

	_, err = Gross(100, 0)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = Gross(-5, 1)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = Gross(math.MaxInt64, 2)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestMinorMajorConversion(t *testing.T) {
	m, err := ToMinor(decimal.RequireFromString("12.34"))
	require.NoError(t, err)
	assert.Equal(t, int64(1234), m)

	m, err = ToMinor(decimal.RequireFromString("50"))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), m)

	_, err = ToMinor(decimal.RequireFromString("0.001"))
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	assert.Equal(t, 19.5, ToMajor(1950))
}
