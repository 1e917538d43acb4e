package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/watersub/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Route("/subscribers", func(r chi.Router) {
				r.Get("/", h.ListSubscribers)
				r.Post("/", h.CreateSubscriber)
				r.Get("/{id}", h.GetSubscriber)
				r.Put("/{id}", h.UpdateSubscriber)
				r.Delete("/{id}", h.DeleteSubscriber)
				r.Post("/{id}/reconcile", h.Reconcile)
				r.Get("/{id}/orders", h.ListOrders)
				r.Get("/{id}/payments", h.ListPayments)
			})

			r.Get("/orders", h.SearchOrders)
			r.Post("/orders", h.CreateOrder)
			r.Delete("/orders/{id}", h.DeleteOrder)
			r.Post("/payments", h.CreatePayment)

			r.Get("/prices", h.GetPrices)
			r.Put("/prices/{operation}", h.UpdatePrice)

			r.Get("/settings/promo", h.GetPromoSettings)
			r.Put("/settings/promo", h.UpdatePromoSettings)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/logs", h.ListActions)
				r.Get("/users", h.ListUsers)
				r.Post("/users", h.CreateUser)
				r.Put("/users/{id}", h.UpdateUser)
				r.Delete("/users/{id}", h.DeleteUser)
			})
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
