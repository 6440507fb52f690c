package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/macaronshop/storefront/internal/service"
	"github.com/macaronshop/storefront/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding an item to the cart.
// Display fields are snapshotted server-side from the catalog, so the
// client only names what it wants and how many.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// UpdateQuantityRequest is the JSON request body for updating a line item's
// quantity. Zero removes the item.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerIDFromContext(r.Context())
	if !ok {
		writeBadRequest(w, "customer identity is required")
		return
	}

	cart, err := h.service.GetCart(r.Context(), customerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: cart})
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerIDFromContext(r.Context())
	if !ok {
		writeBadRequest(w, "customer identity is required")
		return
	}

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	cart, err := h.service.AddItem(r.Context(), customerID, req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: cart})
}

// UpdateLineItemQuantity handles PUT /api/v1/cart/items/{lineItemID}
func (h *CartHandler) UpdateLineItemQuantity(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerIDFromContext(r.Context())
	if !ok {
		writeBadRequest(w, "customer identity is required")
		return
	}

	lineItemID := chi.URLParam(r, "lineItemID")
	if lineItemID == "" {
		writeBadRequest(w, "lineItemID is required")
		return
	}

	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	cart, err := h.service.UpdateLineItemQuantity(r.Context(), customerID, lineItemID, req.Quantity)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: cart})
}

// RemoveLineItem handles DELETE /api/v1/cart/items/{lineItemID}
func (h *CartHandler) RemoveLineItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerIDFromContext(r.Context())
	if !ok {
		writeBadRequest(w, "customer identity is required")
		return
	}

	lineItemID := chi.URLParam(r, "lineItemID")
	if lineItemID == "" {
		writeBadRequest(w, "lineItemID is required")
		return
	}

	cart, err := h.service.RemoveLineItem(r.Context(), customerID, lineItemID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: cart})
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerIDFromContext(r.Context())
	if !ok {
		writeBadRequest(w, "customer identity is required")
		return
	}

	cart, err := h.service.ClearCart(r.Context(), customerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: cart})
}
