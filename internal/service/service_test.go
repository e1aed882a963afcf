package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/marketplace-payouts/internal/model"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestService(repo *memRepo, transfers TransferClient, opts Options) (*Service, *testClock) {
	clk := newTestClock()
	svc := NewService(repo, transfers, opts)
	svc.now = clk.Now
	return svc, clk
}

// fundVendor начисляет продавцу заказ с указанными суммами позиций и сразу делает их доступными.
func fundVendor(t *testing.T, svc *Service, clk *testClock, vendorID, orderID int64, amounts ...int64) {
	t.Helper()

	items := make([]OrderItem, 0, len(amounts))
	for i, a := range amounts {
		items = append(items, OrderItem{OrderItemID: orderID*100 + int64(i), Price: a, Quantity: 1})
	}
	_, err := svc.OrderFulfilled(context.Background(), OrderFulfilledEvent{
		OrderID:  orderID,
		VendorID: vendorID,
		Items:    items,
	})
	require.NoError(t, err)

	clk.Advance(time.Minute)
	_, err = svc.MaturePending(context.Background(), vendorID, clk.Now().Add(svc.opts.HoldPeriod))
	require.NoError(t, err)
}

func requireBalanced(t *testing.T, repo *memRepo, vendorID int64) model.Vendor {
	t.Helper()

	v := repo.vendor(vendorID)
	require.Truef(t, v.Balanced(), "vendor %d is not balanced: %+v", vendorID, v)
	return v
}

func TestNewServiceDefaults(t *testing.T) {
	svc := NewService(newMemRepo("10"), nil, Options{})
	if svc.logger == nil {
		t.Fatalf("expected nop logger")
	}
	if svc.now().Location() != time.UTC {
		t.Fatalf("service clock must be UTC")
	}
	if err := svc.Ping(context.Background()); err != nil {
		t.Fatalf("Ping error: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}
