package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-payouts/internal/commission"
	"github.com/mmeshcher/marketplace-payouts/internal/service"
)

type orderItemRequest struct {
	OrderItemID int64           `json:"order_item_id" validate:"gt=0"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity    int64           `json:"quantity" validate:"gt=0"`
}

type orderFulfilledRequest struct {
	OrderID            int64              `json:"order_id" validate:"gt=0"`
	VendorID           int64              `json:"vendor_id" validate:"gt=0"`
	Items              []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	CommissionOverride *decimal.Decimal   `json:"commission_override,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// OrderFulfilled принимает событие о выполненном заказе от подсистемы заказов.
// Повторная доставка события не создаёт новых начислений.
func (h *Handler) OrderFulfilled(w http.ResponseWriter, r *http.Request) {
	var req orderFulfilledRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, err, "order fulfilled error")
		return
	}

	ev := service.OrderFulfilledEvent{
		OrderID:            req.OrderID,
		VendorID:           req.VendorID,
		Items:              make([]service.OrderItem, 0, len(req.Items)),
		CommissionOverride: req.CommissionOverride,
	}
	for _, it := range req.Items {
		price, err := commission.ToMinor(it.Price)
		if err != nil {
			h.writeError(w, err, "order fulfilled error")
			return
		}
		ev.Items = append(ev.Items, service.OrderItem{
			OrderItemID: it.OrderItemID,
			Price:       price,
			Quantity:    it.Quantity,
		})
	}

	res, err := h.service.OrderFulfilled(r.Context(), ev)
	if err != nil {
		h.writeError(w, err, "order fulfilled error", zap.Int64("orderID", req.OrderID), zap.Int64("vendorID", req.VendorID))
		return
	}

	status := http.StatusCreated
	if len(res.Recorded) == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, fulfillmentResponse{
		Recorded:   newEarningsResponse(res.Recorded),
		Duplicates: res.Duplicates,
	})
}
