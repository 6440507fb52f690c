package domain

import "time"

// Cart represents a customer's shopping cart.
type Cart struct {
	ID                   string            `json:"id"`
	CustomerID           string            `json:"customer_id"`
	Items                []CartItem        `json:"items"`
	DiscountCodes        []DiscountCodeRef `json:"discount_codes"`
	TotalPrice           Money             `json:"total_price"`
	DiscountOnTotalPrice *TotalDiscount    `json:"discount_on_total_price,omitempty"`
	Currency             string            `json:"currency"`
	Version              int               `json:"version"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	ExpiresAt            time.Time         `json:"expires_at"`
}

// CartItem is a single line item in the cart. Display fields are snapshotted
// from the catalog at the time of adding and are not re-synced afterwards.
type CartItem struct {
	ID               string         `json:"id"`
	ProductID        string         `json:"product_id"`
	VariantID        string         `json:"variant_id"`
	Name             string         `json:"name"`
	SKU              string         `json:"sku"`
	Price            int64          `json:"price"`
	OriginalPrice    *int64         `json:"original_price,omitempty"`
	OnSale           bool           `json:"on_sale"`
	ImageURL         string         `json:"image_url,omitempty"`
	Quantity         int            `json:"quantity"`
	AppliedDiscounts []ItemDiscount `json:"applied_discounts,omitempty"`
}

// ItemDiscount annotates a line item with a per-item discount for display.
// It does not participate in the cart total computation.
type ItemDiscount struct {
	CartDiscountID   string `json:"cart_discount_id"`
	DiscountedAmount int64  `json:"discounted_amount"`
}

// DiscountCodeRef is a reference to an applied discount code.
type DiscountCodeRef struct {
	DiscountCodeID string `json:"discount_code_id"`
}

// Money is a monetary amount expressed in a currency's minor units.
type Money struct {
	CentAmount     int64  `json:"cent_amount"`
	FractionDigits int    `json:"fraction_digits"`
	CurrencyCode   string `json:"currency_code"`
}

// TotalDiscount summarizes the discount currently reducing the cart subtotal.
// A cart carries this field only while a discount is active; its absence is
// the signal that no discount applies.
type TotalDiscount struct {
	DiscountedAmount  Money              `json:"discounted_amount"`
	IncludedDiscounts []IncludedDiscount `json:"included_discounts"`
}

// IncludedDiscount is one cart discount's contribution to the total discount.
type IncludedDiscount struct {
	CartDiscountID string `json:"cart_discount_id"`
	Name           string `json:"name,omitempty"`
	Amount         Money  `json:"amount"`
}

// Subtotal returns the sum of item price times quantity, in cents, before
// any cart-level discount.
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}

// ItemCount returns the total number of units across all line items.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// FindItemIndex returns the index of the line item matching the given product
// and variant IDs, or -1 if no such item exists.
func (c *Cart) FindItemIndex(productID, variantID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].VariantID == variantID {
			return i
		}
	}
	return -1
}

// FindLineItemIndex returns the index of the line item with the given line
// item ID, or -1 if no such item exists.
func (c *Cart) FindLineItemIndex(lineItemID string) int {
	for i := range c.Items {
		if c.Items[i].ID == lineItemID {
			return i
		}
	}
	return -1
}

// HasDiscountCode reports whether the discount code with the given ID is
// already applied to the cart.
func (c *Cart) HasDiscountCode(discountCodeID string) bool {
	for _, ref := range c.DiscountCodes {
		if ref.DiscountCodeID == discountCodeID {
			return true
		}
	}
	return false
}

// HasItemDiscounts reports whether any line item carries per-item discount
// annotations.
func (c *Cart) HasItemDiscounts() bool {
	for _, item := range c.Items {
		if len(item.AppliedDiscounts) > 0 {
			return true
		}
	}
	return false
}
