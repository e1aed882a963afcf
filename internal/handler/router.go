package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/marketplace-payouts/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса выплат.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.RequestID)
	r.Use(custommiddleware.Logger(h.logger))

	// promhttp сам сжимает ответ по Accept-Encoding.
	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)
		r.Use(h.authMiddleware.Middleware)

		r.Route("/api/vendor", func(r chi.Router) {
			r.Use(custommiddleware.RequireRole(custommiddleware.RoleVendor))

			r.Get("/earnings/summary", h.GetEarningsSummary)
			r.Get("/earnings", h.ListEarnings)

			r.With(h.rateLimiter.Middleware, h.idempotency.Middleware).Post("/payouts", h.CreatePayoutRequest)
			r.Get("/payouts", h.ListVendorPayouts)
			r.Get("/payouts/history", h.ListPayoutHistory)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(custommiddleware.RequireRole(custommiddleware.RoleAdmin))

			r.Get("/payouts", h.ListPayouts)
			r.Route("/payouts/{id}", func(r chi.Router) {
				r.Get("/", h.GetPayout)
				r.Post("/process", h.ProcessPayout)
				r.With(h.idempotency.Middleware).Post("/complete", h.CompletePayout)
				r.Post("/fail", h.FailPayout)
				r.Post("/sync", h.SyncTransfer)
			})

			r.Post("/earnings/mark-paid", h.MarkPaidOut)
			r.Post("/vendors/{id}/mature", h.MatureVendorEarnings)
			r.Get("/vendors/{id}/summary", h.GetVendorSummary)

			r.Get("/settings/commission", h.GetCommission)
			r.Put("/settings/commission", h.SetCommission)

			r.Get("/reports/earnings", h.GetEarningsReport)
		})

		r.Route("/api/internal", func(r chi.Router) {
			r.Use(custommiddleware.RequireRole(custommiddleware.RoleService))

			r.Post("/orders/fulfilled", h.OrderFulfilled)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
