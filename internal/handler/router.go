package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/akazarov/layaway-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса отложенных покупок.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/pos", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/customers", h.SearchCustomers)
			r.Post("/customers", h.CreateCustomer)
			r.Get("/customers/{id}/reservations", h.GetCustomerReservations)

			r.Post("/reservations", h.CreateReservation)
			r.Get("/reservations/{id}", h.GetReservation)
			r.Post("/reservations/{id}/payments", h.AddPayment)
			r.Post("/reservations/{id}/invoice", h.CreateInvoice)
			r.Post("/reservations/{id}/cancel", h.CancelReservation)

			r.Get("/products/{id}/stock", h.GetProductStock)
			r.Get("/payment-methods", h.ListPaymentMethods)

			r.Post("/terminal/sessions", h.OpenTerminalSession)
			r.Get("/terminal/sessions/{sessionID}", h.GetTerminalSession)
			r.Delete("/terminal/sessions/{sessionID}", h.CloseTerminalSession)
			r.Post("/terminal/sessions/{sessionID}/keydown", h.TerminalKeyDown)
			r.Post("/terminal/sessions/{sessionID}/keyup", h.TerminalKeyUp)
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
