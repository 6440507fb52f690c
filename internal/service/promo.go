package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/macaronshop/storefront/internal/domain"
)

// DefaultCodeCacheTTL is how long the available-codes list stays fresh.
const DefaultCodeCacheTTL = 30 * time.Minute

// RejectionIneffective is the reason reported when a structurally valid
// promo code does not change the cart price.
const RejectionIneffective = "This promo code doesn't do anything for your order"

// CartOperations is the slice of the cart service the coordinator drives.
type CartOperations interface {
	GetCart(ctx context.Context, customerID string) (*domain.Cart, error)
	ApplyPromoCode(ctx context.Context, customerID, code string) (*domain.Cart, error)
	RemovePromoCode(ctx context.Context, customerID, discountCodeID string) (*domain.Cart, error)
}

// CodeSource lists the promo codes currently open for redemption.
type CodeSource interface {
	FetchActiveCodes(ctx context.Context) ([]domain.ActivePromoCode, error)
}

// CodeLookup resolves a discount code reference by ID.
type CodeLookup interface {
	DiscountCodeByID(id string) (*domain.DiscountCode, error)
}

// ApplyOutcome reports what happened to a promo code application. Applied
// is false when the code was accepted but then rolled back for having no
// effect on the price; Cart reflects the final state either way.
type ApplyOutcome struct {
	Cart    *domain.Cart
	Applied bool
	Reason  string
}

// PromoCoordinator layers effect verification on top of raw promo code
// application. Some codes are structurally valid yet target discounts the
// storefront does not model, so applying them changes nothing; the
// coordinator detects that and removes the code again rather than leaving a
// dead code on the cart.
type PromoCoordinator struct {
	carts    CartOperations
	source   CodeSource
	lookup   CodeLookup
	logger   *slog.Logger
	cacheTTL time.Duration
	now      func() time.Time

	mu        sync.Mutex
	cached    []domain.ActivePromoCode
	fetchedAt time.Time
	fetchErr  error
	inflight  chan struct{}
}

// NewPromoCoordinator creates a promo coordinator.
func NewPromoCoordinator(carts CartOperations, source CodeSource, lookup CodeLookup, logger *slog.Logger, cacheTTL time.Duration) *PromoCoordinator {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCodeCacheTTL
	}
	return &PromoCoordinator{
		carts:    carts,
		source:   source,
		lookup:   lookup,
		logger:   logger,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// AddPromoCode applies a code and verifies it actually affected the cart.
// The cart state before application is snapshotted; if afterwards neither
// the total price changed nor any item-level discount appeared, the freshly
// added code is removed again and the outcome reports the rejection.
func (c *PromoCoordinator) AddPromoCode(ctx context.Context, customerID, code string) (*ApplyOutcome, error) {
	before, err := c.carts.GetCart(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("snapshot cart: %w", err)
	}
	priorTotal := before.TotalPrice.CentAmount
	priorCodes := make(map[string]struct{}, len(before.DiscountCodes))
	for _, ref := range before.DiscountCodes {
		priorCodes[ref.DiscountCodeID] = struct{}{}
	}

	after, err := c.carts.ApplyPromoCode(ctx, customerID, code)
	if err != nil {
		return nil, err
	}

	priceChanged := after.TotalPrice.CentAmount != priorTotal
	if priceChanged || after.HasItemDiscounts() {
		return &ApplyOutcome{Cart: after, Applied: true}, nil
	}

	addedID := ""
	for _, ref := range after.DiscountCodes {
		if _, ok := priorCodes[ref.DiscountCodeID]; !ok {
			addedID = ref.DiscountCodeID
			break
		}
	}
	if addedID == "" {
		// Nothing new on the cart, nothing to undo.
		return &ApplyOutcome{Cart: after, Applied: false, Reason: RejectionIneffective}, nil
	}

	c.logger.InfoContext(ctx, "promo code had no effect, rolling back",
		slog.String("customer_id", customerID),
		slog.String("code", code),
		slog.String("discount_code_id", addedID),
	)

	reverted, err := c.carts.RemovePromoCode(ctx, customerID, addedID)
	if err != nil {
		// The ineffective code stays applied. It changes nothing about the
		// price, so keep the cart we have and still report the rejection.
		c.logger.ErrorContext(ctx, "failed to roll back ineffective promo code",
			slog.String("customer_id", customerID),
			slog.String("discount_code_id", addedID),
			slog.String("error", err.Error()),
		)
		return &ApplyOutcome{Cart: after, Applied: false, Reason: RejectionIneffective}, nil
	}

	return &ApplyOutcome{Cart: reverted, Applied: false, Reason: RejectionIneffective}, nil
}

// RemovePromoCode removes an applied code from the cart.
func (c *PromoCoordinator) RemovePromoCode(ctx context.Context, customerID, discountCodeID string) (*domain.Cart, error) {
	return c.carts.RemovePromoCode(ctx, customerID, discountCodeID)
}

// ActivePromoCodes resolves the cart's applied code references into
// displayable codes. A reference whose code is missing from the snapshot
// still shows up, carrying the bare ID, so the shopper can remove it.
func (c *PromoCoordinator) ActivePromoCodes(cart *domain.Cart) []domain.ActivePromoCode {
	codes := make([]domain.ActivePromoCode, 0, len(cart.DiscountCodes))
	for _, ref := range cart.DiscountCodes {
		dc, err := c.lookup.DiscountCodeByID(ref.DiscountCodeID)
		if err != nil {
			codes = append(codes, domain.ActivePromoCode{
				ID:   ref.DiscountCodeID,
				Code: ref.DiscountCodeID,
			})
			continue
		}
		codes = append(codes, domain.ActivePromoCode{
			ID:   dc.ID,
			Name: dc.Name,
			Code: dc.Code,
		})
	}
	return codes
}

// AvailableCodes returns the currently redeemable promo codes, served from
// a cache with a fixed TTL. When the cache is cold or stale, exactly one
// caller fetches while concurrent callers wait on the same fetch; nobody
// polls and the source sees one request per expiry.
func (c *PromoCoordinator) AvailableCodes(ctx context.Context) ([]domain.ActivePromoCode, error) {
	c.mu.Lock()
	if c.cached != nil && c.now().Sub(c.fetchedAt) < c.cacheTTL {
		codes := c.cached
		c.mu.Unlock()
		return codes, nil
	}
	if c.inflight != nil {
		ch := c.inflight
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
		codes, err := c.cached, c.fetchErr
		c.mu.Unlock()
		return codes, err
	}
	ch := make(chan struct{})
	c.inflight = ch
	c.mu.Unlock()

	codes, err := c.source.FetchActiveCodes(ctx)

	c.mu.Lock()
	if err == nil {
		c.cached = codes
		c.fetchedAt = c.now()
	}
	c.fetchErr = err
	c.inflight = nil
	close(ch)
	c.mu.Unlock()

	return codes, err
}

// Refresh drops the cached code list and fetches a fresh one.
func (c *PromoCoordinator) Refresh(ctx context.Context) ([]domain.ActivePromoCode, error) {
	c.mu.Lock()
	c.cached = nil
	c.fetchedAt = time.Time{}
	c.fetchErr = nil
	c.mu.Unlock()
	return c.AvailableCodes(ctx)
}
