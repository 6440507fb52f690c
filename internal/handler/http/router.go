package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/macaronshop/storefront/internal/catalog"
	"github.com/macaronshop/storefront/internal/service"
	"github.com/macaronshop/storefront/pkg/health"
	"github.com/macaronshop/storefront/pkg/middleware"
)

const serviceName = "storefront"

// RouterConfig carries the knobs the router needs beyond its handlers.
type RouterConfig struct {
	RateLimitRPS   int
	RateLimitBurst int
	// JWTSecret guards the admin refresh endpoint. Empty leaves the
	// endpoint open, which is acceptable only in development.
	JWTSecret []byte
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	cartService *service.CartService,
	coordinator *service.PromoCoordinator,
	store *catalog.Store,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Metrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS)
	if cfg.RateLimitRPS > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	// Health check and metrics endpoints
	r.Get("/health/live", healthHandler.Live())
	r.Get("/health/ready", healthHandler.Ready())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	cartHandler := NewCartHandler(cartService, logger)
	promoHandler := NewPromoHandler(coordinator, logger)
	catalogHandler := NewCatalogHandler(store, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", catalogHandler.ListProducts)
		r.Get("/products/{productID}", catalogHandler.GetProduct)
		r.Get("/categories", catalogHandler.ListCategories)

		r.Get("/promo-codes", promoHandler.AvailableCodes)
		r.Group(func(r chi.Router) {
			if len(cfg.JWTSecret) > 0 {
				r.Use(middleware.JWTAuth(cfg.JWTSecret))
				r.Use(middleware.RequireRole("admin"))
			}
			r.Post("/promo-codes/refresh", promoHandler.RefreshCodes)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(CustomerID)

			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)

			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{lineItemID}", cartHandler.UpdateLineItemQuantity)
			r.Delete("/items/{lineItemID}", cartHandler.RemoveLineItem)

			r.Post("/promo-codes", promoHandler.ApplyPromoCode)
			r.Delete("/promo-codes/{discountCodeID}", promoHandler.RemovePromoCode)
		})
	})

	return r
}
