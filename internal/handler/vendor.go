package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-payouts/internal/commission"
	"github.com/mmeshcher/marketplace-payouts/internal/model"
)

// GetEarningsSummary возвращает сводку начислений текущего продавца.
func (h *Handler) GetEarningsSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetEarningsSummary(r.Context(), p.ID)
	if err != nil {
		h.writeError(w, err, "get earnings summary error", zap.Int64("vendorID", p.ID))
		return
	}

	writeJSON(w, http.StatusOK, newSummaryResponse(summary))
}

// ListEarnings возвращает начисления текущего продавца, опционально по статусу.
func (h *Handler) ListEarnings(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var status *model.EarningStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s, err := model.ParseEarningStatus(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		status = &s
	}

	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, err, "list earnings error")
		return
	}

	earnings, err := h.service.ListEarnings(r.Context(), p.ID, status, limit)
	if err != nil {
		h.writeError(w, err, "list earnings error", zap.Int64("vendorID", p.ID))
		return
	}

	if len(earnings) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, newEarningsResponse(earnings))
}

type createPayoutRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

// CreatePayoutRequest создаёт заявку текущего продавца на вывод доступного баланса.
func (h *Handler) CreatePayoutRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req createPayoutRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, err, "create payout request error")
		return
	}

	amount, err := commission.ToMinor(req.Amount)
	if err != nil {
		h.writeError(w, err, "create payout request error")
		return
	}

	payout, err := h.service.CreatePayoutRequest(r.Context(), p.ID, amount)
	if err != nil {
		h.writeError(w, err, "create payout request error", zap.Int64("vendorID", p.ID), zap.Int64("amount", amount))
		return
	}

	writeJSON(w, http.StatusCreated, newPayoutResponse(payout))
}

// ListVendorPayouts возвращает заявки текущего продавца.
func (h *Handler) ListVendorPayouts(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	filter := model.PayoutFilter{VendorID: &p.ID}
	if v := r.URL.Query().Get("status"); v != "" {
		s, err := model.ParsePayoutStatus(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.Status = &s
	}

	requests, err := h.service.ListPayoutRequests(r.Context(), filter)
	if err != nil {
		h.writeError(w, err, "list payout requests error", zap.Int64("vendorID", p.ID))
		return
	}

	if len(requests) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, newPayoutsResponse(requests))
}

// ListPayoutHistory возвращает историю завершённых выплат текущего продавца.
func (h *Handler) ListPayoutHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	history, err := h.service.ListPayoutHistory(r.Context(), p.ID)
	if err != nil {
		h.writeError(w, err, "list payout history error", zap.Int64("vendorID", p.ID))
		return
	}

	if len(history) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]historyResponse, 0, len(history))
	for i := range history {
		resp = append(resp, newHistoryResponse(&history[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

