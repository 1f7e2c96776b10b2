package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/agrocredit-system/internal/middleware"
	"github.com/mmeshcher/agrocredit-system/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса агрокредитования.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)

		r.With(custommiddleware.RequireRole(model.RoleAgent)).
			Post("/", h.CreateOrder)
		r.With(custommiddleware.RequireRole(model.RoleAgent, model.RoleAdmin)).
			Post("/{id}/payments", h.RecordPayment)
		r.With(custommiddleware.RequireRole(model.RoleAdmin)).
			Post("/{id}/decision", h.Decide)
	})

	r.Route("/api/farmers", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)
		r.Use(custommiddleware.RequireRole(model.RoleAgent))

		r.Get("/", h.GetFarmers)
		r.Post("/", h.RegisterFarmer)
	})

	r.Route("/api/profiles", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)
		r.Use(custommiddleware.RequireRole(model.RoleAdmin))

		r.Get("/", h.GetProfiles)
		r.Delete("/{id}", h.DeleteProfile)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
