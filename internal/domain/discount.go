package domain

import "time"

// Cart discount value type constants.
const (
	DiscountTypeRelative = "relative"
	DiscountTypeAbsolute = "absolute"
)

// DiscountCode is a human-enterable promo code linking to one or more cart
// discounts. Loaded from the catalog snapshot; read-only at runtime.
type DiscountCode struct {
	ID            string            `json:"id"`
	Code          string            `json:"code"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	IsActive      bool              `json:"is_active"`
	ValidUntil    *time.Time        `json:"valid_until,omitempty"`
	CartDiscounts []CartDiscountRef `json:"cart_discounts"`
}

// CartDiscountRef references a CartDiscount by ID.
type CartDiscountRef struct {
	ID string `json:"id"`
}

// CartDiscount describes how a discount reduces the cart total. A relative
// discount takes a permyriad fraction of the subtotal (1000 = 10%); an
// absolute discount subtracts fixed amounts per currency.
type CartDiscount struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Permyriad int64   `json:"permyriad,omitempty"`
	Amounts   []Money `json:"amounts,omitempty"`
	// MaxDiscountAmount caps a relative discount's contribution in cents.
	// Zero means no cap.
	MaxDiscountAmount int64 `json:"max_discount_amount,omitempty"`
}

// IsRedeemable reports whether the code can currently be applied: it must be
// active and not past its expiry.
func (d *DiscountCode) IsRedeemable(now time.Time) bool {
	if !d.IsActive {
		return false
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return false
	}
	return true
}

// AmountFor computes the cart discount's contribution for the given subtotal
// and currency, in cents. Relative discounts apply their permyriad fraction
// capped by MaxDiscountAmount; absolute discounts sum their amounts in the
// matching currency, capped at the subtotal.
func (d *CartDiscount) AmountFor(subtotal int64, currency string) int64 {
	switch d.Type {
	case DiscountTypeRelative:
		amount := subtotal * d.Permyriad / 10000
		if d.MaxDiscountAmount > 0 && amount > d.MaxDiscountAmount {
			amount = d.MaxDiscountAmount
		}
		return amount

	case DiscountTypeAbsolute:
		var amount int64
		for _, m := range d.Amounts {
			if m.CurrencyCode == currency {
				amount += m.CentAmount
			}
		}
		if amount > subtotal {
			amount = subtotal
		}
		return amount

	default:
		return 0
	}
}

// ActivePromoCode is the display-friendly view of a discount code applied to
// a cart. Name and Code are empty when the code cannot be resolved against
// the catalog.
type ActivePromoCode struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Code string `json:"code,omitempty"`
}
