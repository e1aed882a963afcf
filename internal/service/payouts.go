package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-payouts/internal/model"
)

// CreatePayoutRequest создаёт заявку продавца на выплату. Сумма сразу резервируется из доступного
// баланса, поэтому две заявки не могут вместе превысить баланс.
func (s *Service) CreatePayoutRequest(ctx context.Context, vendorID int64, amount int64) (*model.PayoutRequest, error) {
	if vendorID <= 0 {
		return nil, fmt.Errorf("%w: vendor id is required", model.ErrInvalidInput)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: payout amount must be positive", model.ErrInvalidInput)
	}
	if amount < s.opts.MinimumPayout {
		return nil, fmt.Errorf("%w: minimum payout amount is %d", model.ErrInvalidInput, s.opts.MinimumPayout)
	}

	var req *model.PayoutRequest
	err := s.repo.InTx(ctx, func(tx Tx) error {
		v, err := tx.LockVendor(ctx, vendorID)
		if err != nil {
			return err
		}

		snapshot := v.AvailableBalance
		if err := v.Reserve(amount); err != nil {
			return err
		}

		now := s.now()
		req = &model.PayoutRequest{
			VendorID:         vendorID,
			RequestedAmount:  amount,
			AvailableBalance: snapshot,
			Status:           model.PayoutStatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.InsertPayoutRequest(ctx, req); err != nil {
			return err
		}
		return tx.UpdateVendor(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PayoutRequested(amount)
	return req, nil
}

// ApprovePayout переводит заявку из pending в processing. Баланс не меняется, сумма уже зарезервирована.
func (s *Service) ApprovePayout(ctx context.Context, id, adminID int64, notes string) (*model.PayoutRequest, error) {
	return s.transition(ctx, id, model.PayoutActionApprove, func(_ Tx, _ *model.Vendor, r *model.PayoutRequest, now time.Time) error {
		r.ReviewedBy = &adminID
		r.ReviewedAt = &now
		r.AdminNotes = strings.TrimSpace(notes)
		return nil
	})
}

// RejectPayout отклоняет заявку в статусе pending или processing и возвращает зарезервированную сумму.
func (s *Service) RejectPayout(ctx context.Context, id, adminID int64, reason string) (*model.PayoutRequest, error) {
	return s.transition(ctx, id, model.PayoutActionReject, func(_ Tx, _ *model.Vendor, r *model.PayoutRequest, now time.Time) error {
		r.ReviewedBy = &adminID
		r.ReviewedAt = &now
		r.AdminNotes = strings.TrimSpace(reason)
		return nil
	})
}

// ProcessPayout выполняет решение администратора по заявке: approve или reject.
func (s *Service) ProcessPayout(ctx context.Context, id, adminID int64, action model.PayoutAction, reason string) (*model.PayoutRequest, error) {
	switch action {
	case model.PayoutActionApprove:
		return s.ApprovePayout(ctx, id, adminID, reason)
	case model.PayoutActionReject:
		return s.RejectPayout(ctx, id, adminID, reason)
	case model.PayoutActionComplete, model.PayoutActionFail:
	}
	return nil, fmt.Errorf("%w: process action must be approve or reject, got %q", model.ErrInvalidInput, action)
}

// CompletePayout завершает заявку в статусе processing: помечает выплаченными самые старые доступные
// начисления в пределах суммы заявки, закрывает резерв и пишет запись в историю выплат.
func (s *Service) CompletePayout(ctx context.Context, id int64, paymentReference string, transactionFee int64) (*model.PayoutHistory, error) {
	paymentReference = strings.TrimSpace(paymentReference)
	if paymentReference == "" {
		return nil, fmt.Errorf("%w: payment reference is required", model.ErrInvalidInput)
	}
	if transactionFee < 0 {
		return nil, fmt.Errorf("%w: transaction fee must not be negative", model.ErrInvalidInput)
	}

	var history *model.PayoutHistory
	_, err := s.transition(ctx, id, model.PayoutActionComplete, func(tx Tx, v *model.Vendor, r *model.PayoutRequest, now time.Time) error {
		if transactionFee > r.RequestedAmount {
			return fmt.Errorf("%w: transaction fee %d exceeds payout amount %d", model.ErrInvalidInput, transactionFee, r.RequestedAmount)
		}

		available, err := tx.ListAvailableEarnings(ctx, r.VendorID)
		if err != nil {
			return err
		}
		if ids, _ := selectFIFO(available, r.RequestedAmount); len(ids) > 0 {
			if err := markPaidOut(ctx, tx, ids, r.VendorID, r.ID, now); err != nil {
				return err
			}
		}

		if err := v.Settle(r.RequestedAmount, transactionFee); err != nil {
			return err
		}

		r.PaymentReference = paymentReference
		r.TransactionFee = transactionFee
		r.CompletedAt = &now

		history = &model.PayoutHistory{
			PayoutRequestID:  r.ID,
			VendorID:         r.VendorID,
			Amount:           r.RequestedAmount,
			TransactionFee:   transactionFee,
			NetAmount:        r.RequestedAmount - transactionFee,
			Status:           model.PayoutStatusCompleted,
			PaymentReference: paymentReference,
			CreatedAt:        now,
		}
		return tx.InsertPayoutHistory(ctx, history)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PayoutSettled(history.NetAmount, history.TransactionFee)
	return history, nil
}

// FailPayout переводит заявку из processing в failed и возвращает зарезервированную сумму.
func (s *Service) FailPayout(ctx context.Context, id int64, reason string) (*model.PayoutRequest, error) {
	return s.transition(ctx, id, model.PayoutActionFail, func(_ Tx, _ *model.Vendor, r *model.PayoutRequest, now time.Time) error {
		r.FailureReason = strings.TrimSpace(reason)
		r.FailedAt = &now
		return nil
	})
}

type transitionFunc func(tx Tx, v *model.Vendor, r *model.PayoutRequest, now time.Time) error

// transition выполняет переход заявки по action в одной транзакции. Строка продавца блокируется
// до любых изменений; заявка сохраняется только при неизменном с момента чтения статусе.
func (s *Service) transition(ctx context.Context, id int64, action model.PayoutAction, apply transitionFunc) (*model.PayoutRequest, error) {
	var (
		req  *model.PayoutRequest
		from model.PayoutStatus
	)

	err := s.repo.InTx(ctx, func(tx Tx) error {
		var err error
		req, err = tx.GetPayoutRequest(ctx, id)
		if err != nil {
			return err
		}

		from = req.Status
		next, err := from.Next(action)
		if err != nil {
			return err
		}

		v, err := tx.LockVendor(ctx, req.VendorID)
		if err != nil {
			return err
		}

		// Все переходы блокируют продавца, поэтому после блокировки статус заявки уже не изменится.
		current, err := tx.GetPayoutRequest(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != from {
			return fmt.Errorf("%w: payout request %d is no longer %s", model.ErrConcurrentModification, id, from)
		}

		now := s.now()
		req.Status = next
		req.UpdatedAt = now

		if next.ReleasesReservation() {
			if err := v.Release(req.RequestedAmount); err != nil {
				return err
			}
		}
		if apply != nil {
			if err := apply(tx, v, req, now); err != nil {
				return err
			}
		}

		updated, err := tx.UpdatePayoutRequest(ctx, req, from)
		if err != nil {
			return err
		}
		if !updated {
			return fmt.Errorf("%w: payout request %d is no longer %s", model.ErrConcurrentModification, id, from)
		}
		return tx.UpdateVendor(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PayoutTransition(from, req.Status)
	s.logger.Info("payout request transitioned",
		zap.Int64("payoutRequestID", req.ID),
		zap.Int64("vendorID", req.VendorID),
		zap.String("from", string(from)),
		zap.String("to", string(req.Status)),
	)
	return req, nil
}

// GetPayoutRequest возвращает заявку на выплату по идентификатору.
func (s *Service) GetPayoutRequest(ctx context.Context, id int64) (*model.PayoutRequest, error) {
	return s.repo.GetPayoutRequest(ctx, id)
}

// ListPayoutRequests возвращает заявки на выплату по фильтру.
func (s *Service) ListPayoutRequests(ctx context.Context, filter model.PayoutFilter) ([]model.PayoutRequest, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListPayoutRequests(ctx, filter)
}

// ListPayoutHistory возвращает историю выплат продавца.
func (s *Service) ListPayoutHistory(ctx context.Context, vendorID int64) ([]model.PayoutHistory, error) {
	return s.repo.ListPayoutHistory(ctx, vendorID)
}
