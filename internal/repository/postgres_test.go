package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/mmeshcher/marketplace-payouts/internal/model"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, want: true},
		{name: "deadlock", err: fmt.Errorf("update vendor: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}), want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, want: false},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: true},
		{name: "business error", err: fmt.Errorf("%w: requested 10", model.ErrInsufficientBalance), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestWithRetry(t *testing.T) {
	saved := retryDelays
	retryDelays = []time.Duration{time.Millisecond, time.Millisecond}
	defer func() { retryDelays = saved }()

	r := &PostgresRepository{}
	ctx := context.Background()

	calls := 0
	err := r.withRetry(ctx, func() error {
		calls++
		if calls < 2 {
			return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = r.withRetry(ctx, func() error {
		calls++
		return model.ErrConcurrentModification
	})
	assert.ErrorIs(t, err, model.ErrConcurrentModification)
	assert.Equal(t, 1, calls)

	calls = 0
	err = r.withRetry(ctx, func() error {
		calls++
		return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
	})
	assert.Error(t, err)
	assert.Equal(t, len(retryDelays)+1, calls)
}

func TestWithRetry_StopsOnCanceledContext(t *testing.T) {
	saved := retryDelays
	retryDelays = []time.Duration{time.Hour}
	defer func() { retryDelays = saved }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := (&PostgresRepository{}).withRetry(ctx, func() error {
		calls++
		return errors.New("read: connection reset by peer")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
