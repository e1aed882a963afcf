package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayoutStatusNext(t *testing.T) {
	tests := []struct {
		from    PayoutStatus
		action  PayoutAction
		want    PayoutStatus
		wantErr bool
	}{
		{PayoutStatusPending, PayoutActionApprove, PayoutStatusProcessing, false},
		{PayoutStatusPending, PayoutActionReject, PayoutStatusRejected, false},
		{PayoutStatusPending, PayoutActionComplete, "", true},
		{PayoutStatusPending, PayoutActionFail, "", true},
		{PayoutStatusProcessing, PayoutActionComplete, PayoutStatusCompleted, false},
		{PayoutStatusProcessing, PayoutActionFail, PayoutStatusFailed, false},
		{PayoutStatusProcessing, PayoutActionApprove, "", true},
		{PayoutStatusProcessing, PayoutActionReject, PayoutStatusRejected, false},
		{PayoutStatusCompleted, PayoutActionFail, "", true},
		{PayoutStatusRejected, PayoutActionApprove, "", true},
		{PayoutStatusFailed, PayoutActionComplete, "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := tt.from.Next(tt.action)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidState)
				assert.Equal(t, tt.from, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPayoutStatusIsTerminal(t *testing.T) {
	assert.False(t, PayoutStatusPending.IsTerminal())
	assert.False(t, PayoutStatusProcessing.IsTerminal())
	assert.True(t, PayoutStatusCompleted.IsTerminal())
	assert.True(t, PayoutStatusFailed.IsTerminal())
	assert.True(t, PayoutStatusRejected.IsTerminal())
}

func TestParseStatuses(t *testing.T) {
	s, err := ParsePayoutStatus("processing")
	require.NoError(t, err)
	assert.Equal(t, PayoutStatusProcessing, s)

	_, err = ParsePayoutStatus("approved")
	assert.ErrorIs(t, err, ErrInvalidInput)

	a, err := ParsePayoutAction("reject")
	require.NoError(t, err)
	assert.Equal(t, PayoutActionReject, a)

	_, err = ParsePayoutAction("cancel")
	assert.ErrorIs(t, err, ErrInvalidInput)

	e, err := ParseEarningStatus("paid_out")
	require.NoError(t, err)
	assert.Equal(t, EarningStatusPaidOut, e)

	_, err = ParseEarningStatus("settled")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestVendorLifecycleKeepsInvariant(t *testing.T) {
	v := &Vendor{ID: 1}

	require.NoError(t, v.CreditPending(8000))
	require.NoError(t, v.CreditPending(2000))
	require.True(t, v.Balanced())

	require.NoError(t, v.Mature(10000))
	assert.Equal(t, int64(10000), v.AvailableBalance)
	assert.Equal(t, int64(0), v.PendingBalance)
	require.True(t, v.Balanced())

	require.NoError(t, v.Reserve(2000))
	assert.Equal(t, int64(8000), v.AvailableBalance)
	require.True(t, v.Balanced())

	require.NoError(t, v.Settle(2000, 50))
	assert.Equal(t, int64(1950), v.TotalPaidOut)
	assert.Equal(t, int64(50), v.TotalTransactionFees)
	assert.Equal(t, int64(0), v.ReservedBalance)
	require.True(t, v.Balanced())

	require.NoError(t, v.Reserve(3000))
	require.NoError(t, v.Release(3000))
	assert.Equal(t, int64(8000), v.AvailableBalance)
	require.True(t, v.Balanced())
}

func TestVendorReserveInsufficient(t *testing.T) {
	v := &Vendor{TotalEarnings: 5000, AvailableBalance: 5000}

	require.NoError(t, v.Reserve(5000))
	assert.Equal(t, int64(0), v.AvailableBalance)

	err := v.Reserve(1)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	assert.Equal(t, int64(0), v.AvailableBalance)
	assert.Equal(t, int64(5000), v.ReservedBalance)
}

func TestVendorRejectsOutOfRangeMoves(t *testing.T) {
	v := &Vendor{TotalEarnings: 100, PendingBalance: 100}

	assert.ErrorIs(t, v.Mature(101), ErrInvalidInput)
	assert.ErrorIs(t, v.Release(1), ErrInvalidInput)
	assert.ErrorIs(t, v.Reserve(0), ErrInvalidInput)
	assert.ErrorIs(t, v.CreditPending(-1), ErrInvalidInput)

	require.NoError(t, v.Mature(100))
	require.NoError(t, v.Reserve(100))
	assert.ErrorIs(t, v.Settle(100, 101), ErrInvalidInput)
	assert.True(t, v.Balanced())
}
