package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-payouts/internal/model"
	"github.com/mmeshcher/marketplace-payouts/internal/transfer"
)

const transferBatchSize = 100

// StartMaturation запускает фоновый перевод созревших начислений в доступные.
func (s *Service) StartMaturation(ctx context.Context) {
	interval := s.opts.MaturationInterval
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.matureDue(ctx)
			}
		}
	}()
}

// StartTransferSync запускает фоновую синхронизацию заявок в статусе processing с провайдером переводов.
func (s *Service) StartTransferSync(ctx context.Context) {
	if s.transfers == nil {
		return
	}

	interval := s.opts.TransferSyncInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processTransferBatch(ctx)
			}
		}
	}()
}

func (s *Service) processTransferBatch(ctx context.Context) {
	status := model.PayoutStatusProcessing
	requests, err := s.repo.ListPayoutRequests(ctx, model.PayoutFilter{Status: &status, Limit: transferBatchSize})
	if err != nil {
		s.logger.Error("list processing payout requests", zap.Error(err))
		return
	}

	for _, r := range requests {
		resp, statusCode, retryAfter, err := s.transfers.GetTransfer(ctx, r.ID)
		if err != nil {
			s.logger.Warn("get transfer", zap.Error(err), zap.Int64("payoutRequestID", r.ID))
			continue
		}

		if statusCode == http.StatusTooManyRequests {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if resp == nil {
			continue
		}

		if _, err := s.applyTransfer(ctx, r.ID, resp); err != nil {
			s.logger.Error("apply transfer result", zap.Error(err), zap.Int64("payoutRequestID", r.ID))
		}
	}
}

// SyncTransfer запрашивает у провайдера состояние перевода по заявке и применяет его.
// Заявка, перевод по которой ещё не завершён, возвращается без изменений.
func (s *Service) SyncTransfer(ctx context.Context, id int64) (*model.PayoutRequest, error) {
	if s.transfers == nil {
		return nil, ErrTransfersDisabled
	}

	req, err := s.repo.GetPayoutRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != model.PayoutStatusProcessing {
		return nil, fmt.Errorf("%w: payout request %d is %s, not processing", model.ErrInvalidState, id, req.Status)
	}

	resp, statusCode, _, err := s.transfers.GetTransfer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	if resp == nil {
		s.logger.Debug("transfer not ready", zap.Int64("payoutRequestID", id), zap.Int("statusCode", statusCode))
		return req, nil
	}

	return s.applyTransfer(ctx, id, resp)
}

func (s *Service) applyTransfer(ctx context.Context, id int64, t *transfer.Transfer) (*model.PayoutRequest, error) {
	switch t.Status {
	case transfer.StatusSucceeded:
		ref := t.Reference
		if ref == "" {
			ref = fmt.Sprintf("transfer-%d", id)
		}
		if _, err := s.CompletePayout(ctx, id, ref, t.Fee); err != nil {
			return nil, err
		}
	case transfer.StatusFailed:
		reason := t.FailureReason
		if reason == "" {
			reason = "transfer failed"
		}
		if _, err := s.FailPayout(ctx, id, reason); err != nil {
			return nil, err
		}
	case transfer.StatusPending:
	default:
		return nil, fmt.Errorf("unknown transfer status %q", t.Status)
	}
	return s.repo.GetPayoutRequest(ctx, id)
}
