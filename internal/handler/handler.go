// Package handler содержит HTTP-обработчики API сервиса выплат продавцам.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-payouts/internal/middleware"
	"github.com/mmeshcher/marketplace-payouts/internal/model"
	"github.com/mmeshcher/marketplace-payouts/internal/service"
	"github.com/mmeshcher/marketplace-payouts/internal/validation"
)

const maxListLimit = 500

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	OrderFulfilled(ctx context.Context, ev service.OrderFulfilledEvent) (*service.FulfillmentResult, error)
	MaturePending(ctx context.Context, vendorID int64, asOf time.Time) (*service.MaturationResult, error)
	MarkPaidOut(ctx context.Context, earningIDs []int64, payoutRequestID int64) error
	GetEarningsSummary(ctx context.Context, vendorID int64) (*model.EarningsSummary, error)
	ListEarnings(ctx context.Context, vendorID int64, status *model.EarningStatus, limit int) ([]model.VendorEarning, error)

	CreatePayoutRequest(ctx context.Context, vendorID int64, amount int64) (*model.PayoutRequest, error)
	ProcessPayout(ctx context.Context, id, adminID int64, action model.PayoutAction, reason string) (*model.PayoutRequest, error)
	CompletePayout(ctx context.Context, id int64, paymentReference string, transactionFee int64) (*model.PayoutHistory, error)
	FailPayout(ctx context.Context, id int64, reason string) (*model.PayoutRequest, error)
	SyncTransfer(ctx context.Context, id int64) (*model.PayoutRequest, error)
	GetPayoutRequest(ctx context.Context, id int64) (*model.PayoutRequest, error)
	ListPayoutRequests(ctx context.Context, filter model.PayoutFilter) ([]model.PayoutRequest, error)
	ListPayoutHistory(ctx context.Context, vendorID int64) ([]model.PayoutHistory, error)

	PlatformReport(ctx context.Context, period string) (*model.PlatformReport, error)
	GetCommissionRate(ctx context.Context) (*model.CommissionRate, error)
	SetCommissionRate(ctx context.Context, percentage decimal.Decimal, adminID int64) (*model.CommissionRate, error)

	Ping(ctx context.Context) error
}

// Handler реализует HTTP-обработчики API сервиса выплат.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	idempotency    *middleware.Idempotency
	rateLimiter    *middleware.RateLimiter
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// idempotency и rateLimiter могут быть nil, тогда соответствующая защита отключена.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware,
	idempotency *middleware.Idempotency, rateLimiter *middleware.RateLimiter) *Handler {
	if idempotency == nil {
		idempotency = middleware.NewIdempotency(nil, 0, logger)
	}
	if rateLimiter == nil {
		rateLimiter = middleware.NewRateLimiter(0, 0)
	}
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		idempotency:    idempotency,
		rateLimiter:    rateLimiter,
	}
}

// writeError переводит доменную ошибку в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrInsufficientBalance):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, model.ErrInvalidState),
		errors.Is(err, model.ErrAlreadyPaid),
		errors.Is(err, model.ErrConcurrentModification):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrTransfersDisabled):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled):
		h.logger.Debug(msg+": request canceled", fields...)
	default:
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON читает тело запроса и проверяет его теги validate. Пустое тело допустимо, если allowEmpty.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
		}
	}
	return validation.Struct(v)
}

func principal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return p, ok
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit <= 0 || limit > maxListLimit {
		return 0, fmt.Errorf("%w: limit must be between 1 and %d", model.ErrInvalidInput, maxListLimit)
	}
	return limit, nil
}

// Healthz проверяет доступность хранилища.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
