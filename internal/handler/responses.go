package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-payouts/internal/commission"
	"github.com/mmeshcher/marketplace-payouts/internal/model"
)

// Суммы в ответах отдаются в основных единицах валюты.

type earningResponse struct {
	ID                    int64           `json:"id"`
	OrderID               int64           `json:"order_id"`
	OrderItemID           int64           `json:"order_item_id"`
	GrossAmount           float64         `json:"gross_amount"`
	PlatformFeePercentage decimal.Decimal `json:"platform_fee_percentage"`
	CommissionVersion     int64           `json:"commission_version"`
	PlatformFee           float64         `json:"platform_fee"`
	NetEarnings           float64         `json:"net_earnings"`
	Status                string          `json:"status"`
	EarningDate           string          `json:"earning_date"`
	AvailableDate         string          `json:"available_date"`
	PaidOutAt             *string         `json:"paid_out_at,omitempty"`
	PayoutRequestID       *int64          `json:"payout_request_id,omitempty"`
}

type payoutResponse struct {
	ID               int64   `json:"id"`
	VendorID         int64   `json:"vendor_id"`
	RequestedAmount  float64 `json:"requested_amount"`
	AvailableBalance float64 `json:"available_balance"`
	Status           string  `json:"status"`
	ReviewedBy       *int64  `json:"reviewed_by,omitempty"`
	ReviewedAt       *string `json:"reviewed_at,omitempty"`
	AdminNotes       string  `json:"admin_notes,omitempty"`
	PaymentReference string  `json:"payment_reference,omitempty"`
	TransactionFee   float64 `json:"transaction_fee"`
	FailureReason    string  `json:"failure_reason,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty"`
	FailedAt         *string `json:"failed_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type historyResponse struct {
	ID               int64   `json:"id"`
	PayoutRequestID  int64   `json:"payout_request_id"`
	VendorID         int64   `json:"vendor_id"`
	Amount           float64 `json:"amount"`
	TransactionFee   float64 `json:"transaction_fee"`
	NetAmount        float64 `json:"net_amount"`
	Status           string  `json:"status"`
	PaymentReference string  `json:"payment_reference"`
	CreatedAt        string  `json:"created_at"`
}

type summaryResponse struct {
	VendorID         int64   `json:"vendor_id"`
	TotalEarnings    float64 `json:"total_earnings"`
	AvailableBalance float64 `json:"available_balance"`
	PendingBalance   float64 `json:"pending_balance"`
	ReservedBalance  float64 `json:"reserved_balance"`
	TotalPaidOut     float64 `json:"total_paid_out"`
	ConfirmedOrders  int64   `json:"confirmed_orders"`
	PendingOrders    int64   `json:"pending_orders"`
}

type commissionResponse struct {
	Percentage decimal.Decimal `json:"percentage"`
	Version    int64           `json:"version"`
	UpdatedBy  *int64          `json:"updated_by,omitempty"`
	UpdatedAt  string          `json:"updated_at"`
}

type vendorTotalResponse struct {
	VendorID    int64   `json:"vendor_id"`
	NetEarnings float64 `json:"net_earnings"`
	Orders      int64   `json:"orders"`
}

type reportResponse struct {
	From                  *string               `json:"from,omitempty"`
	To                    string                `json:"to"`
	TotalPlatformEarnings float64               `json:"total_platform_earnings"`
	TotalVendorEarnings   float64               `json:"total_vendor_earnings"`
	TotalOrders           int64                 `json:"total_orders"`
	AvgOrderValue         float64               `json:"avg_order_value"`
	TopEarningVendors     []vendorTotalResponse `json:"top_earning_vendors"`
}

type fulfillmentResponse struct {
	Recorded   []earningResponse `json:"recorded"`
	Duplicates int               `json:"duplicates"`
}

type maturationResponse struct {
	VendorID int64   `json:"vendor_id"`
	Count    int     `json:"count"`
	Amount   float64 `json:"amount"`
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func newEarningResponse(e model.VendorEarning) earningResponse {
	return earningResponse{
		ID:                    e.ID,
		OrderID:               e.OrderID,
		OrderItemID:           e.OrderItemID,
		GrossAmount:           commission.ToMajor(e.GrossAmount),
		PlatformFeePercentage: e.PlatformFeePercentage,
		CommissionVersion:     e.CommissionVersion,
		PlatformFee:           commission.ToMajor(e.PlatformFee),
		NetEarnings:           commission.ToMajor(e.NetEarnings),
		Status:                string(e.Status),
		EarningDate:           formatTime(e.EarningDate),
		AvailableDate:         formatTime(e.AvailableDate),
		PaidOutAt:             formatTimePtr(e.PaidOutAt),
		PayoutRequestID:       e.PayoutRequestID,
	}
}

func newEarningsResponse(earnings []model.VendorEarning) []earningResponse {
	resp := make([]earningResponse, 0, len(earnings))
	for _, e := range earnings {
		resp = append(resp, newEarningResponse(e))
	}
	return resp
}

func newPayoutResponse(p *model.PayoutRequest) payoutResponse {
	return payoutResponse{
		ID:               p.ID,
		VendorID:         p.VendorID,
		RequestedAmount:  commission.ToMajor(p.RequestedAmount),
		AvailableBalance: commission.ToMajor(p.AvailableBalance),
		Status:           string(p.Status),
		ReviewedBy:       p.ReviewedBy,
		ReviewedAt:       formatTimePtr(p.ReviewedAt),
		AdminNotes:       p.AdminNotes,
		PaymentReference: p.PaymentReference,
		TransactionFee:   commission.ToMajor(p.TransactionFee),
		FailureReason:    p.FailureReason,
		CompletedAt:      formatTimePtr(p.CompletedAt),
		FailedAt:         formatTimePtr(p.FailedAt),
		CreatedAt:        formatTime(p.CreatedAt),
		UpdatedAt:        formatTime(p.UpdatedAt),
	}
}

func newPayoutsResponse(requests []model.PayoutRequest) []payoutResponse {
	resp := make([]payoutResponse, 0, len(requests))
	for i := range requests {
		resp = append(resp, newPayoutResponse(&requests[i]))
	}
	return resp
}

func newHistoryResponse(h *model.PayoutHistory) historyResponse {
	return historyResponse{
		ID:               h.ID,
		PayoutRequestID:  h.PayoutRequestID,
		VendorID:         h.VendorID,
		Amount:           commission.ToMajor(h.Amount),
		TransactionFee:   commission.ToMajor(h.TransactionFee),
		NetAmount:        commission.ToMajor(h.NetAmount),
		Status:           string(h.Status),
		PaymentReference: h.PaymentReference,
		CreatedAt:        formatTime(h.CreatedAt),
	}
}

func newSummaryResponse(s *model.EarningsSummary) summaryResponse {
	return summaryResponse{
		VendorID:         s.VendorID,
		TotalEarnings:    commission.ToMajor(s.TotalEarnings),
		AvailableBalance: commission.ToMajor(s.AvailableBalance),
		PendingBalance:   commission.ToMajor(s.PendingBalance),
		ReservedBalance:  commission.ToMajor(s.ReservedBalance),
		TotalPaidOut:     commission.ToMajor(s.TotalPaidOut),
		ConfirmedOrders:  s.ConfirmedOrders,
		PendingOrders:    s.PendingOrders,
	}
}

func newCommissionResponse(c *model.CommissionRate) commissionResponse {
	return commissionResponse{
		Percentage: c.Percentage,
		Version:    c.Version,
		UpdatedBy:  c.UpdatedBy,
		UpdatedAt:  formatTime(c.UpdatedAt),
	}
}

func newReportResponse(r *model.PlatformReport) reportResponse {
	top := make([]vendorTotalResponse, 0, len(r.TopEarningVendors))
	for _, v := range r.TopEarningVendors {
		top = append(top, vendorTotalResponse{
			VendorID:    v.VendorID,
			NetEarnings: commission.ToMajor(v.NetEarnings),
			Orders:      v.Orders,
		})
	}
	return reportResponse{
		From:                  formatTimePtr(r.From),
		To:                    formatTime(r.To),
		TotalPlatformEarnings: commission.ToMajor(r.TotalPlatformEarnings),
		TotalVendorEarnings:   commission.ToMajor(r.TotalVendorEarnings),
		TotalOrders:           r.TotalOrders,
		AvgOrderValue:         commission.ToMajor(r.AvgOrderValue),
		TopEarningVendors:     top,
	}
}
