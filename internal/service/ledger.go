package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-payouts/internal/commission"
	"github.com/mmeshcher/marketplace-payouts/internal/model"
)

// EarningInput описывает позицию заказа, по которой начисляется вознаграждение продавцу.
type EarningInput struct {
	VendorID    int64
	OrderID     int64
	OrderItemID int64
	GrossAmount int64
}

// OrderItem описывает позицию выполненного заказа.
type OrderItem struct {
	OrderItemID int64
	Price       int64
	Quantity    int64
}

// OrderFulfilledEvent приходит от подсистемы заказов после выполнения заказа.
type OrderFulfilledEvent struct {
	OrderID  int64
	VendorID int64
	Items    []OrderItem
	// CommissionOverride задаёт комиссию для конкретного заказа вместо глобальной.
	CommissionOverride *decimal.Decimal
}

// FulfillmentResult содержит результат обработки выполненного заказа.
type FulfillmentResult struct {
	Recorded   []model.VendorEarning
	Duplicates int
}

// MaturationResult содержит результат перевода начислений в доступные.
type MaturationResult struct {
	VendorID int64
	Count    int
	Amount   int64
}

// RecordEarning создаёт начисление в статусе pending по зафиксированной ставке rate и увеличивает
// ожидающий баланс продавца в той же транзакции.
func (s *Service) RecordEarning(ctx context.Context, in EarningInput, rate model.CommissionRate) (*model.VendorEarning, error) {
	if in.VendorID <= 0 || in.OrderID <= 0 || in.OrderItemID <= 0 {
		return nil, fmt.Errorf("%w: vendor, order and order item ids are required", model.ErrInvalidInput)
	}

	split, err := commission.Calculate(in.GrossAmount, rate.Percentage)
	if err != nil {
		return nil, err
	}

	now := s.now()
	earning := &model.VendorEarning{
		VendorID:              in.VendorID,
		OrderID:               in.OrderID,
		OrderItemID:           in.OrderItemID,
		GrossAmount:           in.GrossAmount,
		PlatformFeePercentage: rate.Percentage,
		CommissionVersion:     rate.Version,
		PlatformFee:           split.PlatformFee,
		NetEarnings:           split.NetEarnings,
		Status:                model.EarningStatusPending,
		EarningDate:           now,
		AvailableDate:         now.Add(s.opts.HoldPeriod),
	}

	err = s.repo.InTx(ctx, func(tx Tx) error {
		v, err := tx.LockVendor(ctx, in.VendorID)
		if err != nil {
			return err
		}
		if err := tx.InsertEarning(ctx, earning); err != nil {
			return err
		}
		if err := v.CreditPending(earning.NetEarnings); err != nil {
			return err
		}
		return tx.UpdateVendor(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.EarningRecorded(earning.GrossAmount, earning.PlatformFee)
	return earning, nil
}

// OrderFulfilled начисляет вознаграждение по каждой позиции выполненного заказа. Ставка комиссии
// читается один раз на заказ; повторно доставленные позиции пропускаются.
func (s *Service) OrderFulfilled(ctx context.Context, ev OrderFulfilledEvent) (*FulfillmentResult, error) {
	if len(ev.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", model.ErrInvalidInput)
	}

	rate, err := s.repo.GetCommissionRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("get commission rate: %w", err)
	}
	snapshot := *rate
	if ev.CommissionOverride != nil {
		if err := commission.ValidatePercentage(*ev.CommissionOverride); err != nil {
			return nil, err
		}
		// Индивидуальная ставка заказа не относится ни к одной версии глобальной настройки.
		snapshot = model.CommissionRate{Percentage: *ev.CommissionOverride}
	}

	res := &FulfillmentResult{}
	for _, item := range ev.Items {
		gross, err := commission.Gross(item.Price, item.Quantity)
		if err != nil {
			return res, err
		}

		earning, err := s.RecordEarning(ctx, EarningInput{
			VendorID:    ev.VendorID,
			OrderID:     ev.OrderID,
			OrderItemID: item.OrderItemID,
			GrossAmount: gross,
		}, snapshot)
		if err != nil {
			if errors.Is(err, model.ErrDuplicateEarning) {
				res.Duplicates++
				continue
			}
			return res, err
		}
		res.Recorded = append(res.Recorded, *earning)
	}

	if s.opts.HoldPeriod <= 0 && len(res.Recorded) > 0 {
		if _, err := s.MaturePending(ctx, ev.VendorID, s.now()); err != nil {
			return res, err
		}
	}

	return res, nil
}

// MaturePending переводит ожидающие начисления продавца с датой доступности не позже asOf в
// статус available. Повторный вызов с тем же asOf ничего не меняет.
func (s *Service) MaturePending(ctx context.Context, vendorID int64, asOf time.Time) (*MaturationResult, error) {
	if vendorID <= 0 {
		return nil, fmt.Errorf("%w: vendor id is required", model.ErrInvalidInput)
	}

	res := &MaturationResult{VendorID: vendorID}
	err := s.repo.InTx(ctx, func(tx Tx) error {
		v, err := tx.LockVendor(ctx, vendorID)
		if err != nil {
			return err
		}
		amount, count, err := tx.MaturePendingEarnings(ctx, vendorID, asOf)
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		if err := v.Mature(amount); err != nil {
			return err
		}
		res.Count, res.Amount = count, amount
		return tx.UpdateVendor(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.EarningsMatured(res.Count)
	return res, nil
}

// MarkPaidOut закрепляет доступные начисления за завершённой заявкой. Используется для сверки,
// когда FIFO-выбор при завершении покрыл не всю сумму заявки. Закреплённая сумма не может
// превысить сумму заявки, балансы продавца не меняются.
func (s *Service) MarkPaidOut(ctx context.Context, earningIDs []int64, payoutRequestID int64) error {
	if len(earningIDs) == 0 {
		return fmt.Errorf("%w: no earnings to mark", model.ErrInvalidInput)
	}

	return s.repo.InTx(ctx, func(tx Tx) error {
		req, err := tx.GetPayoutRequest(ctx, payoutRequestID)
		if err != nil {
			return err
		}
		if _, err := tx.LockVendor(ctx, req.VendorID); err != nil {
			return err
		}
		// Статус перечитывается под блокировкой продавца: переходы заявки берут ту же блокировку.
		if req, err = tx.GetPayoutRequest(ctx, payoutRequestID); err != nil {
			return err
		}
		if req.Status != model.PayoutStatusCompleted {
			return fmt.Errorf("%w: cannot mark earnings paid out for payout in status %s", model.ErrInvalidState, req.Status)
		}

		claimed, err := tx.SumClaimedEarnings(ctx, req.ID)
		if err != nil {
			return err
		}
		available, err := tx.ListAvailableEarnings(ctx, req.VendorID)
		if err != nil {
			return err
		}
		want := make(map[int64]struct{}, len(earningIDs))
		for _, id := range earningIDs {
			want[id] = struct{}{}
		}
		var total int64
		for _, e := range available {
			if _, ok := want[e.ID]; ok {
				total += e.NetEarnings
			}
		}
		if claimed+total > req.RequestedAmount {
			return fmt.Errorf("%w: earnings %d exceed unclaimed payout amount %d",
				model.ErrInvalidInput, total, req.RequestedAmount-claimed)
		}

		return markPaidOut(ctx, tx, earningIDs, req.VendorID, req.ID, s.now())
	})
}

func markPaidOut(ctx context.Context, tx Tx, ids []int64, vendorID, payoutRequestID int64, at time.Time) error {
	n, err := tx.MarkEarningsPaidOut(ctx, ids, vendorID, payoutRequestID, at)
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return fmt.Errorf("%w: %d of %d earnings are not available", model.ErrAlreadyPaid, int64(len(ids))-n, len(ids))
	}
	return nil
}

// selectFIFO выбирает самые старые начисления, сумма которых не превышает limit.
// Выбор останавливается на первом не помещающемся начислении, чтобы не обгонять старые.
func selectFIFO(earnings []model.VendorEarning, limit int64) ([]int64, int64) {
	var (
		ids   []int64
		total int64
	)
	for _, e := range earnings {
		if total+e.NetEarnings > limit {
			break
		}
		ids = append(ids, e.ID)
		total += e.NetEarnings
	}
	return ids, total
}

// GetEarningsSummary возвращает сводку начислений продавца.
func (s *Service) GetEarningsSummary(ctx context.Context, vendorID int64) (*model.EarningsSummary, error) {
	return s.repo.GetEarningsSummary(ctx, vendorID)
}

// ListEarnings возвращает начисления продавца, опционально отфильтрованные по статусу.
func (s *Service) ListEarnings(ctx context.Context, vendorID int64, status *model.EarningStatus, limit int) ([]model.VendorEarning, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListEarnings(ctx, vendorID, status, limit)
}

func (s *Service) matureDue(ctx context.Context) {
	now := s.now()
	vendors, err := s.repo.ListVendorsWithDueEarnings(ctx, now, 100)
	if err != nil {
		s.logger.Error("list vendors with due earnings", zap.Error(err))
		return
	}

	for _, id := range vendors {
		res, err := s.MaturePending(ctx, id, now)
		if err != nil {
			s.logger.Error("mature pending earnings", zap.Error(err), zap.Int64("vendorID", id))
			continue
		}
		s.logger.Debug("earnings matured",
			zap.Int64("vendorID", id),
			zap.Int("count", res.Count),
			zap.Int64("amount", res.Amount),
		)
	}
}
