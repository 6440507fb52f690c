package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/macaronshop/storefront/internal/catalog"
	"github.com/macaronshop/storefront/pkg/pagination"
)

// CatalogHandler serves the read-only product and category snapshot.
type CatalogHandler struct {
	store  *catalog.Store
	logger *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(store *catalog.Store, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		store:  store,
		logger: logger,
	}
}

// ListProducts handles GET /api/v1/products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := catalog.ProductFilter{
		CategoryID: q.Get("category_id"),
		Query:      q.Get("q"),
		Sort:       q.Get("sort"),
	}
	if v := q.Get("on_sale"); v != "" {
		onSale, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "on_sale must be a boolean")
			return
		}
		filter.OnSale = &onSale
	}
	if v := q.Get("min_price"); v != "" {
		p, err := strconv.ParseInt(v, 10, 64)
		if err != nil || p < 0 {
			writeBadRequest(w, "min_price must be a non-negative integer")
			return
		}
		filter.MinPrice = p
	}
	if v := q.Get("max_price"); v != "" {
		p, err := strconv.ParseInt(v, 10, 64)
		if err != nil || p < 0 {
			writeBadRequest(w, "max_price must be a non-negative integer")
			return
		}
		filter.MaxPrice = p
	}

	page := pagination.FromRequest(r)
	products, total := h.store.SearchProducts(filter, page)

	writeJSON(w, http.StatusOK, response{Data: pagination.NewResult(products, total, page)})
}

// GetProduct handles GET /api/v1/products/{productID}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	if productID == "" {
		writeBadRequest(w, "productID is required")
		return
	}

	product, err := h.store.ProductByID(productID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: product})
}

// ListCategories handles GET /api/v1/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	if parent, ok := r.URL.Query()["parent_id"]; ok {
		p := ""
		if len(parent) > 0 {
			p = parent[0]
		}
		writeJSON(w, http.StatusOK, response{Data: h.store.CategoriesByParent(p)})
		return
	}

	writeJSON(w, http.StatusOK, response{Data: h.store.Categories()})
}
