package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-payouts/internal/model"
	"github.com/mmeshcher/marketplace-payouts/internal/transfer"
)

// memState хранит снимок данных in-memory хранилища. Транзакция работает с копией и
// подменяет состояние только при успешном завершении.
type memState struct {
	vendors  map[int64]model.Vendor
	earnings []model.VendorEarning
	requests map[int64]model.PayoutRequest
	history  []model.PayoutHistory
	rate     model.CommissionRate

	nextEarningID int64
	nextRequestID int64
	nextHistoryID int64
}

func (s *memState) clone() *memState {
	c := *s
	c.vendors = make(map[int64]model.Vendor, len(s.vendors))
	for k, v := range s.vendors {
		c.vendors[k] = v
	}
	c.earnings = append([]model.VendorEarning(nil), s.earnings...)
	c.requests = make(map[int64]model.PayoutRequest, len(s.requests))
	for k, v := range s.requests {
		c.requests[k] = v
	}
	c.history = append([]model.PayoutHistory(nil), s.history...)
	return &c
}

type memRepo struct {
	mu    sync.Mutex
	state *memState

	// onLockVendor вызывается внутри транзакции после блокировки продавца и
	// имитирует изменение, зафиксированное другой сессией.
	onLockVendor func(st *memState)
	// staleUpdate заставляет условное обновление заявки не найти строку.
	staleUpdate bool
	txErr       error
}

func newMemRepo(pct string) *memRepo {
	return &memRepo{
		state: &memState{
			vendors:  map[int64]model.Vendor{},
			requests: map[int64]model.PayoutRequest{},
			rate:     model.CommissionRate{Percentage: decimal.RequireFromString(pct), Version: 1},
		},
	}
}

func (r *memRepo) Close() error                   { return nil }
func (r *memRepo) Ping(ctx context.Context) error { return nil }

func (r *memRepo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.txErr != nil {
		return r.txErr
	}

	st := r.state.clone()
	if err := fn(&memTx{repo: r, st: st}); err != nil {
		return err
	}
	r.state = st
	return nil
}

func (r *memRepo) vendor(id int64) model.Vendor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.vendors[id]
}

func (r *memRepo) historyFor(vendorID int64) []model.PayoutHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PayoutHistory
	for _, h := range r.state.history {
		if h.VendorID == vendorID {
			out = append(out, h)
		}
	}
	return out
}

func (r *memRepo) earningsFor(vendorID int64) []model.VendorEarning {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.VendorEarning
	for _, e := range r.state.earnings {
		if e.VendorID == vendorID {
			out = append(out, e)
		}
	}
	return out
}

func (r *memRepo) GetEarningsSummary(ctx context.Context, vendorID int64) (*model.EarningsSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.state.vendors[vendorID]
	pending := map[int64]struct{}{}
	confirmed := map[int64]struct{}{}
	for _, e := range r.state.earnings {
		if e.VendorID != vendorID {
			continue
		}
		if e.Status == model.EarningStatusPending {
			pending[e.OrderID] = struct{}{}
		} else {
			confirmed[e.OrderID] = struct{}{}
		}
	}
	return &model.EarningsSummary{
		VendorID:         vendorID,
		TotalEarnings:    v.TotalEarnings,
		AvailableBalance: v.AvailableBalance,
		PendingBalance:   v.PendingBalance,
		ReservedBalance:  v.ReservedBalance,
		TotalPaidOut:     v.TotalPaidOut,
		ConfirmedOrders:  int64(len(confirmed)),
		PendingOrders:    int64(len(pending)),
	}, nil
}

func (r *memRepo) ListEarnings(ctx context.Context, vendorID int64, status *model.EarningStatus, limit int) ([]model.VendorEarning, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.VendorEarning
	for _, e := range r.state.earnings {
		if e.VendorID != vendorID || (status != nil && e.Status != *status) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) ListVendorsWithDueEarnings(ctx context.Context, asOf time.Time, limit int) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := map[int64]struct{}{}
	var out []int64
	for _, e := range r.state.earnings {
		if e.Status != model.EarningStatusPending || e.AvailableDate.After(asOf) {
			continue
		}
		if _, ok := seen[e.VendorID]; ok {
			continue
		}
		seen[e.VendorID] = struct{}{}
		out = append(out, e.VendorID)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) GetPayoutRequest(ctx context.Context, id int64) (*model.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.state.requests[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &req, nil
}

func (r *memRepo) ListPayoutRequests(ctx context.Context, filter model.PayoutFilter) ([]model.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.PayoutRequest
	for _, req := range r.state.requests {
		if filter.VendorID != nil && req.VendorID != *filter.VendorID {
			continue
		}
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memRepo) ListPayoutHistory(ctx context.Context, vendorID int64) ([]model.PayoutHistory, error) {
	return r.historyFor(vendorID), nil
}

func (r *memRepo) GetCommissionRate(ctx context.Context) (*model.CommissionRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rate := r.state.rate
	return &rate, nil
}

func (r *memRepo) SetCommissionRate(ctx context.Context, percentage decimal.Decimal, updatedBy int64) (*model.CommissionRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.rate = model.CommissionRate{
		Percentage: percentage,
		Version:    r.state.rate.Version + 1,
		UpdatedBy:  &updatedBy,
		UpdatedAt:  time.Now().UTC(),
	}
	rate := r.state.rate
	return &rate, nil
}

func (r *memRepo) GetPlatformReport(ctx context.Context, from *time.Time, to time.Time, top int) (*model.PlatformReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := &model.PlatformReport{From: from, To: to}
	orders := map[int64]struct{}{}
	byVendor := map[int64]*model.VendorEarningsTotal{}
	vendorOrders := map[int64]map[int64]struct{}{}
	for _, e := range r.state.earnings {
		if (from != nil && e.EarningDate.Before(*from)) || e.EarningDate.After(to) {
			continue
		}
		report.TotalPlatformEarnings += e.PlatformFee
		report.TotalVendorEarnings += e.NetEarnings
		report.TotalGross += e.GrossAmount
		orders[e.OrderID] = struct{}{}

		t, ok := byVendor[e.VendorID]
		if !ok {
			t = &model.VendorEarningsTotal{VendorID: e.VendorID}
			byVendor[e.VendorID] = t
			vendorOrders[e.VendorID] = map[int64]struct{}{}
		}
		t.NetEarnings += e.NetEarnings
		vendorOrders[e.VendorID][e.OrderID] = struct{}{}
	}
	report.TotalOrders = int64(len(orders))

	for id, t := range byVendor {
		t.Orders = int64(len(vendorOrders[id]))
		report.TopEarningVendors = append(report.TopEarningVendors, *t)
	}
	sort.Slice(report.TopEarningVendors, func(i, j int) bool {
		a, b := report.TopEarningVendors[i], report.TopEarningVendors[j]
		if a.NetEarnings != b.NetEarnings {
			return a.NetEarnings > b.NetEarnings
		}
		return a.VendorID < b.VendorID
	})
	if len(report.TopEarningVendors) > top {
		report.TopEarningVendors = report.TopEarningVendors[:top]
	}
	return report, nil
}

type memTx struct {
	repo *memRepo
	st   *memState
}

func (t *memTx) LockVendor(ctx context.Context, vendorID int64) (*model.Vendor, error) {
	v, ok := t.st.vendors[vendorID]
	if !ok {
		v = model.Vendor{ID: vendorID}
		t.st.vendors[vendorID] = v
	}
	if t.repo.onLockVendor != nil {
		t.repo.onLockVendor(t.st)
	}
	return &v, nil
}

func (t *memTx) UpdateVendor(ctx context.Context, v *model.Vendor) error {
	t.st.vendors[v.ID] = *v
	return nil
}

func (t *memTx) InsertEarning(ctx context.Context, e *model.VendorEarning) error {
	for _, existing := range t.st.earnings {
		if existing.OrderItemID == e.OrderItemID {
			return model.ErrDuplicateEarning
		}
	}
	t.st.nextEarningID++
	e.ID = t.st.nextEarningID
	t.st.earnings = append(t.st.earnings, *e)
	return nil
}

func (t *memTx) MaturePendingEarnings(ctx context.Context, vendorID int64, asOf time.Time) (int64, int, error) {
	var (
		amount int64
		count  int
	)
	for i := range t.st.earnings {
		e := &t.st.earnings[i]
		if e.VendorID != vendorID || e.Status != model.EarningStatusPending || e.AvailableDate.After(asOf) {
			continue
		}
		e.Status = model.EarningStatusAvailable
		amount += e.NetEarnings
		count++
	}
	return amount, count, nil
}

func (t *memTx) ListAvailableEarnings(ctx context.Context, vendorID int64) ([]model.VendorEarning, error) {
	var out []model.VendorEarning
	for _, e := range t.st.earnings {
		if e.VendorID == vendorID && e.Status == model.EarningStatusAvailable {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EarningDate.Equal(out[j].EarningDate) {
			return out[i].EarningDate.Before(out[j].EarningDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) MarkEarningsPaidOut(ctx context.Context, ids []int64, vendorID, payoutRequestID int64, at time.Time) (int64, error) {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var n int64
	for i := range t.st.earnings {
		e := &t.st.earnings[i]
		if _, ok := want[e.ID]; !ok || e.VendorID != vendorID || e.Status != model.EarningStatusAvailable {
			continue
		}
		paidAt := at
		reqID := payoutRequestID
		e.Status = model.EarningStatusPaidOut
		e.PaidOutAt = &paidAt
		e.PayoutRequestID = &reqID
		n++
	}
	return n, nil
}

func (t *memTx) SumClaimedEarnings(ctx context.Context, payoutRequestID int64) (int64, error) {
	var sum int64
	for _, e := range t.st.earnings {
		if e.PayoutRequestID != nil && *e.PayoutRequestID == payoutRequestID {
			sum += e.NetEarnings
		}
	}
	return sum, nil
}

func (t *memTx) GetPayoutRequest(ctx context.Context, id int64) (*model.PayoutRequest, error) {
	req, ok := t.st.requests[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &req, nil
}

func (t *memTx) InsertPayoutRequest(ctx context.Context, r *model.PayoutRequest) error {
	t.st.nextRequestID++
	r.ID = t.st.nextRequestID
	t.st.requests[r.ID] = *r
	return nil
}

func (t *memTx) UpdatePayoutRequest(ctx context.Context, r *model.PayoutRequest, expected model.PayoutStatus) (bool, error) {
	if t.repo.staleUpdate {
		return false, nil
	}
	current, ok := t.st.requests[r.ID]
	if !ok || current.Status != expected {
		return false, nil
	}
	t.st.requests[r.ID] = *r
	return true, nil
}

func (t *memTx) InsertPayoutHistory(ctx context.Context, h *model.PayoutHistory) error {
	t.st.nextHistoryID++
	h.ID = t.st.nextHistoryID
	t.st.history = append(t.st.history, *h)
	return nil
}

type stubTransfers struct {
	mu         sync.Mutex
	byID       map[int64]*transfer.Transfer
	statusCode int
	retryAfter time.Duration
	err        error
	calls      []int64
}

func (s *stubTransfers) GetTransfer(ctx context.Context, payoutRequestID int64) (*transfer.Transfer, int, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, payoutRequestID)
	if s.err != nil {
		return nil, 0, 0, s.err
	}
	if s.statusCode != 0 && s.statusCode != 200 {
		return nil, s.statusCode, s.retryAfter, nil
	}
	t, ok := s.byID[payoutRequestID]
	if !ok {
		return nil, 204, 0, nil
	}
	return t, 200, 0, nil
}

var errBoom = errors.New("boom")
