package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/macaronshop/storefront/internal/domain"
	"github.com/macaronshop/storefront/internal/service"
	"github.com/macaronshop/storefront/pkg/validator"
)

// PromoHandler handles HTTP requests for promo code endpoints.
type PromoHandler struct {
	coordinator *service.PromoCoordinator
	logger      *slog.Logger
}

// NewPromoHandler creates a new promo code HTTP handler.
func NewPromoHandler(coordinator *service.PromoCoordinator, logger *slog.Logger) *PromoHandler {
	return &PromoHandler{
		coordinator: coordinator,
		logger:      logger,
	}
}

// ApplyPromoRequest is the JSON request body for applying a promo code.
type ApplyPromoRequest struct {
	Code string `json:"code" validate:"required,min=1,max=64"`
}

// ApplyPromoResult is the JSON response body for a promo code application.
type ApplyPromoResult struct {
	Applied    bool                     `json:"applied"`
	Reason     string                   `json:"reason,omitempty"`
	Cart       *domain.Cart             `json:"cart"`
	PromoCodes []domain.ActivePromoCode `json:"promo_codes"`
}

// ApplyPromoCode handles POST /api/v1/cart/promo-codes
func (h *PromoHandler) ApplyPromoCode(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerIDFromContext(r.Context())
	if !ok {
		writeBadRequest(w, "customer identity is required")
		return
	}

	var req ApplyPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	outcome, err := h.coordinator.AddPromoCode(r.Context(), customerID, req.Code)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: ApplyPromoResult{
		Applied:    outcome.Applied,
		Reason:     outcome.Reason,
		Cart:       outcome.Cart,
		PromoCodes: h.coordinator.ActivePromoCodes(outcome.Cart),
	}})
}

// RemovePromoCode handles DELETE /api/v1/cart/promo-codes/{discountCodeID}
func (h *PromoHandler) RemovePromoCode(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customerIDFromContext(r.Context())
	if !ok {
		writeBadRequest(w, "customer identity is required")
		return
	}

	discountCodeID := chi.URLParam(r, "discountCodeID")
	if discountCodeID == "" {
		writeBadRequest(w, "discountCodeID is required")
		return
	}

	cart, err := h.coordinator.RemovePromoCode(r.Context(), customerID, discountCodeID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: cart})
}

// AvailableCodes handles GET /api/v1/promo-codes
func (h *PromoHandler) AvailableCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.coordinator.AvailableCodes(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: codes})
}

// RefreshCodes handles POST /api/v1/promo-codes/refresh
func (h *PromoHandler) RefreshCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.coordinator.Refresh(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: codes})
}
