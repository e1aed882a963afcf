package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-payouts/internal/commission"
	"github.com/mmeshcher/marketplace-payouts/internal/model"
)

// ListPayouts возвращает заявки на выплату с фильтрами status и vendor_id.
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	var filter model.PayoutFilter

	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		s, err := model.ParsePayoutStatus(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.Status = &s
	}
	if v := q.Get("vendor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid vendor_id", http.StatusBadRequest)
			return
		}
		filter.VendorID = &id
	}

	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, err, "list payouts error")
		return
	}
	filter.Limit = limit

	requests, err := h.service.ListPayoutRequests(r.Context(), filter)
	if err != nil {
		h.writeError(w, err, "list payouts error")
		return
	}

	if len(requests) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, newPayoutsResponse(requests))
}

// GetPayout возвращает заявку на выплату по идентификатору.
func (h *Handler) GetPayout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	payout, err := h.service.GetPayoutRequest(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "get payout error", zap.Int64("payoutID", id))
		return
	}

	writeJSON(w, http.StatusOK, newPayoutResponse(payout))
}

type processPayoutRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"reason" validate:"max=1000"`
}

// ProcessPayout одобряет или отклоняет заявку в статусе pending.
func (h *Handler) ProcessPayout(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req processPayoutRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, err, "process payout error")
		return
	}

	action, err := model.ParsePayoutAction(req.Action)
	if err != nil {
		h.writeError(w, err, "process payout error")
		return
	}

	payout, err := h.service.ProcessPayout(r.Context(), id, p.ID, action, req.Reason)
	if err != nil {
		h.writeError(w, err, "process payout error", zap.Int64("payoutID", id), zap.String("action", req.Action))
		return
	}

	h.logger.Info("payout processed",
		zap.Int64("payoutID", id),
		zap.Int64("adminID", p.ID),
		zap.String("status", string(payout.Status)),
	)
	writeJSON(w, http.StatusOK, newPayoutResponse(payout))
}

type completePayoutRequest struct {
	PaymentReference string          `json:"payment_reference" validate:"required,max=128,payment_reference"`
	TransactionFee   decimal.Decimal `json:"transaction_fee" validate:"gte=0"`
}

// CompletePayout фиксирует успешный перевод по заявке в статусе processing.
func (h *Handler) CompletePayout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req completePayoutRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, err, "complete payout error")
		return
	}

	fee, err := commission.ToMinor(req.TransactionFee)
	if err != nil {
		h.writeError(w, err, "complete payout error")
		return
	}

	history, err := h.service.CompletePayout(r.Context(), id, req.PaymentReference, fee)
	if err != nil {
		h.writeError(w, err, "complete payout error", zap.Int64("payoutID", id))
		return
	}

	writeJSON(w, http.StatusOK, newHistoryResponse(history))
}

type failPayoutRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// FailPayout фиксирует неудачный перевод и возвращает сумму в доступный баланс продавца.
func (h *Handler) FailPayout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req failPayoutRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, err, "fail payout error")
		return
	}

	payout, err := h.service.FailPayout(r.Context(), id, req.Reason)
	if err != nil {
		h.writeError(w, err, "fail payout error", zap.Int64("payoutID", id))
		return
	}

	writeJSON(w, http.StatusOK, newPayoutResponse(payout))
}

// SyncTransfer запрашивает статус перевода у провайдера и применяет его к заявке.
func (h *Handler) SyncTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	payout, err := h.service.SyncTransfer(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "sync transfer error", zap.Int64("payoutID", id))
		return
	}

	writeJSON(w, http.StatusOK, newPayoutResponse(payout))
}

type markPaidRequest struct {
	EarningIDs      []int64 `json:"earning_ids" validate:"required,min=1,dive,gt=0"`
	PayoutRequestID int64   `json:"payout_request_id" validate:"gt=0"`
}

// MarkPaidOut закрепляет доступные начисления за завершённой заявкой.
func (h *Handler) MarkPaidOut(w http.ResponseWriter, r *http.Request) {
	var req markPaidRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, err, "mark paid out error")
		return
	}

	if err := h.service.MarkPaidOut(r.Context(), req.EarningIDs, req.PayoutRequestID); err != nil {
		h.writeError(w, err, "mark paid out error", zap.Int64("payoutID", req.PayoutRequestID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type matureRequest struct {
	AsOf *time.Time `json:"as_of"`
}

// MatureVendorEarnings переводит созревшие начисления продавца в доступные.
func (h *Handler) MatureVendorEarnings(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req matureRequest
	if err := decodeJSON(r, &req, true); err != nil {
		h.writeError(w, err, "mature earnings error")
		return
	}

	asOf := time.Now().UTC()
	if req.AsOf != nil {
		asOf = req.AsOf.UTC()
	}

	res, err := h.service.MaturePending(r.Context(), vendorID, asOf)
	if err != nil {
		h.writeError(w, err, "mature earnings error", zap.Int64("vendorID", vendorID))
		return
	}

	writeJSON(w, http.StatusOK, maturationResponse{
		VendorID: res.VendorID,
		Count:    res.Count,
		Amount:   commission.ToMajor(res.Amount),
	})
}

// GetVendorSummary возвращает сводку начислений указанного продавца.
func (h *Handler) GetVendorSummary(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := pathID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetEarningsSummary(r.Context(), vendorID)
	if err != nil {
		h.writeError(w, err, "get vendor summary error", zap.Int64("vendorID", vendorID))
		return
	}

	writeJSON(w, http.StatusOK, newSummaryResponse(summary))
}

// GetCommission возвращает текущую ставку комиссии платформы.
func (h *Handler) GetCommission(w http.ResponseWriter, r *http.Request) {
	rate, err := h.service.GetCommissionRate(r.Context())
	if err != nil {
		h.writeError(w, err, "get commission error")
		return
	}

	writeJSON(w, http.StatusOK, newCommissionResponse(rate))
}

type commissionRequest struct {
	Percentage decimal.Decimal `json:"percentage" validate:"gte=0,lte=100"`
}

// SetCommission сохраняет новую ставку комиссии платформы.
func (h *Handler) SetCommission(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req commissionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, err, "set commission error")
		return
	}

	rate, err := h.service.SetCommissionRate(r.Context(), req.Percentage, p.ID)
	if err != nil {
		h.writeError(w, err, "set commission error")
		return
	}

	h.logger.Info("commission rate changed",
		zap.String("percentage", rate.Percentage.String()),
		zap.Int64("version", rate.Version),
		zap.Int64("adminID", p.ID),
	)
	writeJSON(w, http.StatusOK, newCommissionResponse(rate))
}

// GetEarningsReport возвращает отчёт о доходах платформы за период.
func (h *Handler) GetEarningsReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.PlatformReport(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		h.writeError(w, err, "earnings report error")
		return
	}

	writeJSON(w, http.StatusOK, newReportResponse(report))
}
