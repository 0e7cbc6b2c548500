package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"facturador/internal/auth"
	"facturador/internal/infrastructure/metrics"
)

type ProductHandler interface {
	HandleSearchProducts(w http.ResponseWriter, r *http.Request)
	HandleCheckAvailability(w http.ResponseWriter, r *http.Request)
}

type InvoiceHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
}

type RouterDeps struct {
	Products  ProductHandler
	Invoices  InvoiceHandler
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	JWTSecret string
	Logger    *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(deps.Metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Post("/products/search", deps.Products.HandleSearchProducts)
	r.Post("/products/availability", deps.Products.HandleCheckAvailability)

	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", deps.Invoices.List)
		r.Get("/{id}", deps.Invoices.Get)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(deps.JWTSecret, deps.Logger))
			r.Post("/", deps.Invoices.Create)
			r.Patch("/{id}", deps.Invoices.Update)
			r.Delete("/{id}", deps.Invoices.Delete)
		})
	})

	return r
}
