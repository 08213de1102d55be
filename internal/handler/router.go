package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/dental-lab/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса лаборатории.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.gate.Middleware)

			r.Get("/doctors", h.GetDoctors)
			r.Post("/doctors", h.AddDoctor)
			r.Put("/doctors/{id}", h.UpdateDoctor)
			r.Delete("/doctors/{id}", h.DeleteDoctor)

			r.Get("/patients", h.GetPatients)

			r.Get("/products", h.GetProducts)
			r.Post("/products", h.AddProduct)
			r.Put("/products/{id}", h.UpdateProduct)
			r.Delete("/products/{id}", h.DeleteProduct)

			r.Get("/technicians", h.GetTechnicians)
			r.Post("/technicians", h.AddTechnician)
			r.Delete("/technicians/{id}", h.DeleteTechnician)

			r.Get("/orders", h.GetOrders)
			r.Post("/orders", h.AddOrder)
			r.Get("/orders/{id}", h.GetOrder)
			r.Put("/orders/{id}", h.UpdateOrder)
			r.Delete("/orders/{id}", h.DeleteOrder)
			r.Post("/orders/{id}/finalize", h.FinalizeOrder)
			r.Post("/orders/{id}/reopen", h.ReopenOrder)
			r.Put("/orders/{id}/technician", h.UpdateOrderTechnician)

			r.Get("/notices", h.Notices)

			r.Post("/export/lab", h.ExportLab)
			r.Post("/export/order", h.ExportOrder)
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
