package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger(handler.log))
	r.Use(Recoverer(handler.log))
	r.Use(Timeout)
	r.Use(CORS)

	r.Get("/healthz", handler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", handler.Status)
		r.Delete("/status/action-error", handler.ClearActionError)
		r.Post("/reload", handler.Reload)
		r.Get("/overview", handler.Overview)
		r.Get("/diagnostics", handler.Diagnostics)

		r.Get("/inventory", handler.Inventory)
		r.Get("/inventory/out-of-stock", handler.OutOfStock)

		r.Get("/products", handler.ListProducts)
		r.Post("/products", handler.CreateProduct)
		r.Post("/products/import", handler.ImportProducts)
		r.Put("/products/{id}", handler.UpdateProduct)
		r.Delete("/products/{id}", handler.DeleteProduct)
		r.Post("/products/{id}/replenishments", handler.AddReplenishment)
		r.Post("/images", handler.UploadImage)

		r.Get("/replenishments", handler.ListReplenishments)

		r.Get("/sales", handler.ListSales)
		r.Post("/sales", handler.CreateSale)
		r.Delete("/sales/{id}", handler.DeleteSale)

		r.Get("/sellers", handler.ListSellers)

		r.Get("/clients", handler.ListClients)
		r.Post("/clients", handler.CreateClient)
		r.Patch("/clients/{id}", handler.UpdateClient)

		r.Post("/import/ledger", handler.ImportLedger)
	})

	return r
}
