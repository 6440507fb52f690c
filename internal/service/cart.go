package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/macaronshop/storefront/internal/domain"
	"github.com/macaronshop/storefront/internal/event"
	"github.com/macaronshop/storefront/internal/repository"
	apperrors "github.com/macaronshop/storefront/pkg/errors"
)

// Cart operation upper-bound limits to keep carts within reason.
const (
	// MaxQuantityPerItem is the maximum quantity for a single line item.
	MaxQuantityPerItem = 100
	// MaxItemsPerCart is the maximum number of distinct line items.
	MaxItemsPerCart = 50
)

// USD minor units.
const fractionDigits = 2

// Catalog is the snapshot lookup surface the cart service consumes.
type Catalog interface {
	ProductByID(id string) (*domain.Product, error)
	DiscountCodeByCode(code string) (*domain.DiscountCode, error)
	DiscountCodeByID(id string) (*domain.DiscountCode, error)
	CartDiscountByID(id string) (*domain.CartDiscount, error)
}

// CartService owns all cart mutations. Every operation follows the same
// shape: read the cart, change its line items or codes, recompute totals,
// then persist with a version check.
type CartService struct {
	repo     repository.CartRepository
	catalog  Catalog
	producer *event.Producer
	logger   *slog.Logger
	cartTTL  time.Duration
	now      func() time.Time
}

// NewCartService creates a cart service.
func NewCartService(repo repository.CartRepository, catalog Catalog, producer *event.Producer, logger *slog.Logger, cartTTL time.Duration) *CartService {
	return &CartService{
		repo:     repo,
		catalog:  catalog,
		producer: producer,
		logger:   logger,
		cartTTL:  cartTTL,
		now:      time.Now,
	}
}

// GetCart retrieves the customer's cart, returning a fresh empty cart when
// none is persisted.
func (s *CartService) GetCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("customer id is required")
	}

	cart, err := s.repo.Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.newEmptyCart(customerID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// AddItem adds quantity units of a product variant to the cart. An existing
// line item for the same product and variant is merged by increasing its
// quantity; otherwise the product's display fields are snapshotted from the
// catalog into a new line item.
func (s *CartService) AddItem(ctx context.Context, customerID, productID, variantID string, quantity int) (*domain.Cart, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("customer id is required")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}
	if quantity > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	cart, err := s.getOrCreateCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	expectedVersion := cart.Version

	product, err := s.catalog.ProductByID(productID)
	if err != nil {
		return nil, fmt.Errorf("look up product: %w", err)
	}
	variant, ok := product.VariantByID(variantID)
	if !ok {
		return nil, apperrors.NotFound("product variant", variantID)
	}

	if i := cart.FindItemIndex(productID, variant.ID); i >= 0 {
		newQty := cart.Items[i].Quantity + quantity
		if newQty > MaxQuantityPerItem {
			return nil, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem))
		}
		cart.Items[i].Quantity = newQty
	} else {
		if len(cart.Items) >= MaxItemsPerCart {
			return nil, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
		}
		card := product.Card()
		cart.Items = append(cart.Items, domain.CartItem{
			ID:            uuid.New().String(),
			ProductID:     product.ID,
			VariantID:     variant.ID,
			Name:          card.Name,
			SKU:           variant.SKU,
			Price:         card.Price,
			OriginalPrice: card.OriginalPrice,
			OnSale:        card.OnSale,
			ImageURL:      card.ImageURL,
			Quantity:      quantity,
		})
	}

	if err := s.finalize(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("customer_id", customerID),
		slog.String("product_id", productID),
		slog.String("variant_id", variant.ID),
		slog.Int("quantity", quantity),
	)

	return cart, nil
}

// RemoveLineItem removes the line item with the given ID. Removing an absent
// item is a no-op, not an error.
func (s *CartService) RemoveLineItem(ctx context.Context, customerID, lineItemID string) (*domain.Cart, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("customer id is required")
	}
	if lineItemID == "" {
		return nil, apperrors.InvalidInput("line item id is required")
	}

	cart, err := s.getOrCreateCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	expectedVersion := cart.Version

	i := cart.FindLineItemIndex(lineItemID)
	if i < 0 {
		return cart, nil
	}
	cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)

	if err := s.finalize(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "line item removed from cart",
		slog.String("customer_id", customerID),
		slog.String("line_item_id", lineItemID),
	)

	return cart, nil
}

// UpdateLineItemQuantity sets the line item's quantity. Quantity 0 removes
// the item: carts never hold zero-quantity lines.
func (s *CartService) UpdateLineItemQuantity(ctx context.Context, customerID, lineItemID string, quantity int) (*domain.Cart, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("customer id is required")
	}
	if lineItemID == "" {
		return nil, apperrors.InvalidInput("line item id is required")
	}
	if quantity < 0 {
		return nil, apperrors.InvalidInput("quantity must not be negative")
	}
	if quantity > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	cart, err := s.repo.Get(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("get cart for update: %w", err)
	}
	expectedVersion := cart.Version

	i := cart.FindLineItemIndex(lineItemID)
	if i < 0 {
		return nil, apperrors.NotFound("line item", lineItemID)
	}
	if quantity == 0 {
		cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	} else {
		cart.Items[i].Quantity = quantity
	}

	if err := s.finalize(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "line item quantity updated",
		slog.String("customer_id", customerID),
		slog.String("line_item_id", lineItemID),
		slog.Int("quantity", quantity),
	)

	return cart, nil
}

// ClearCart discards the persisted cart and replaces it with a brand-new
// empty one: new ID, version counter reset. The old cart's identity is gone.
func (s *CartService) ClearCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("customer id is required")
	}

	if err := s.repo.Delete(ctx, customerID); err != nil {
		return nil, fmt.Errorf("delete cart: %w", err)
	}

	cart := s.newEmptyCart(customerID)
	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save new cart: %w", err)
	}

	if err := s.producer.PublishCartCleared(ctx, customerID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("customer_id", customerID),
		slog.String("cart_id", cart.ID),
	)

	return cart, nil
}

// ApplyPromoCode applies a discount code to the cart. The code must exist in
// the snapshot, be redeemable, and not already be applied. Whether it
// actually reduces the total is the promo coordinator's concern, not this
// method's: a structurally valid code is accepted even when ineffective.
func (s *CartService) ApplyPromoCode(ctx context.Context, customerID, code string) (*domain.Cart, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("customer id is required")
	}
	if code == "" {
		return nil, apperrors.InvalidInput("promo code is required")
	}

	discountCode, err := s.catalog.DiscountCodeByCode(code)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("unknown promo code %q", code))
		}
		return nil, fmt.Errorf("look up promo code: %w", err)
	}
	if !discountCode.IsRedeemable(s.now().UTC()) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("promo code %q is no longer active", discountCode.Code))
	}

	cart, err := s.getOrCreateCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	expectedVersion := cart.Version

	if cart.HasDiscountCode(discountCode.ID) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("promo code %q is already applied", discountCode.Code))
	}
	cart.DiscountCodes = append(cart.DiscountCodes, domain.DiscountCodeRef{DiscountCodeID: discountCode.ID})

	if err := s.finalize(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	if err := s.producer.PublishPromoApplied(ctx, cart, discountCode); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.promo_applied event",
			slog.String("customer_id", customerID),
			slog.String("discount_code_id", discountCode.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promo code applied",
		slog.String("customer_id", customerID),
		slog.String("code", discountCode.Code),
		slog.String("discount_code_id", discountCode.ID),
	)

	return cart, nil
}

// RemovePromoCode removes an applied discount code by its ID.
func (s *CartService) RemovePromoCode(ctx context.Context, customerID, discountCodeID string) (*domain.Cart, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("customer id is required")
	}
	if discountCodeID == "" {
		return nil, apperrors.InvalidInput("discount code id is required")
	}

	cart, err := s.repo.Get(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("get cart for promo removal: %w", err)
	}
	expectedVersion := cart.Version

	found := false
	codes := cart.DiscountCodes[:0]
	for _, ref := range cart.DiscountCodes {
		if ref.DiscountCodeID == discountCodeID {
			found = true
			continue
		}
		codes = append(codes, ref)
	}
	if !found {
		return nil, apperrors.NotFound("applied discount code", discountCodeID)
	}
	cart.DiscountCodes = codes

	if err := s.finalize(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "promo code removed",
		slog.String("customer_id", customerID),
		slog.String("discount_code_id", discountCodeID),
	)

	return cart, nil
}

// finalize recomputes totals, stamps timestamps, and persists the cart with
// an optimistic version check. A concurrent modification surfaces as a
// CONFLICT error; the caller refetches and retries.
func (s *CartService) finalize(ctx context.Context, cart *domain.Cart, expectedVersion int) error {
	s.recomputeTotals(ctx, cart)

	now := s.now().UTC()
	cart.UpdatedAt = now
	cart.ExpiresAt = now.Add(s.cartTTL)

	ok, err := s.repo.SaveIfVersion(ctx, cart, expectedVersion)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	if !ok {
		return apperrors.Conflict("cart was modified concurrently, please retry")
	}

	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("customer_id", cart.CustomerID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// recomputeTotals derives the cart total from scratch: subtotal over line
// items, then the combined discount from every applied code. Relative
// discounts are summed first, absolute amounts after, and the result is
// clamped so the total never drops below zero. The computation reads only
// the cart's items and codes, so running it twice is a no-op.
func (s *CartService) recomputeTotals(ctx context.Context, cart *domain.Cart) {
	subtotal := cart.Subtotal()

	var relative, absolute int64
	var included []domain.IncludedDiscount

	for _, ref := range cart.DiscountCodes {
		code, err := s.catalog.DiscountCodeByID(ref.DiscountCodeID)
		if err != nil {
			s.logger.WarnContext(ctx, "applied discount code missing from snapshot",
				slog.String("discount_code_id", ref.DiscountCodeID),
			)
			continue
		}
		for _, dref := range code.CartDiscounts {
			discount, err := s.catalog.CartDiscountByID(dref.ID)
			if err != nil {
				s.logger.WarnContext(ctx, "cart discount missing from snapshot",
					slog.String("cart_discount_id", dref.ID),
				)
				continue
			}

			amount := discount.AmountFor(subtotal, cart.Currency)
			if amount <= 0 {
				continue
			}
			switch discount.Type {
			case domain.DiscountTypeRelative:
				relative += amount
			case domain.DiscountTypeAbsolute:
				absolute += amount
			default:
				continue
			}
			included = append(included, domain.IncludedDiscount{
				CartDiscountID: discount.ID,
				Name:           discount.Name,
				Amount:         money(amount, cart.Currency),
			})
		}
	}

	total := relative + absolute
	if total > subtotal {
		total = subtotal
	}

	cart.TotalPrice = money(subtotal-total, cart.Currency)
	if total > 0 {
		cart.DiscountOnTotalPrice = &domain.TotalDiscount{
			DiscountedAmount:  money(total, cart.Currency),
			IncludedDiscounts: included,
		}
	} else {
		// Absence, not a zero value, is what tells readers no discount is
		// in effect.
		cart.DiscountOnTotalPrice = nil
	}
}

func (s *CartService) getOrCreateCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.newEmptyCart(customerID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) newEmptyCart(customerID string) *domain.Cart {
	now := s.now().UTC()
	return &domain.Cart{
		ID:            uuid.New().String(),
		CustomerID:    customerID,
		Items:         []domain.CartItem{},
		DiscountCodes: []domain.DiscountCodeRef{},
		TotalPrice:    money(0, "USD"),
		Currency:      "USD",
		Version:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(s.cartTTL),
	}
}

func money(cents int64, currency string) domain.Money {
	return domain.Money{
		CentAmount:     cents,
		FractionDigits: fractionDigits,
		CurrencyCode:   currency,
	}
}
