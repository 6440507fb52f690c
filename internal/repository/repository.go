// Package repository defines the persistence contract for carts.
package repository

import (
	"context"

	"github.com/macaronshop/storefront/internal/domain"
)

// CartRepository persists carts keyed by customer ID.
type CartRepository interface {
	// Get retrieves the customer's cart. Returns an error wrapping
	// errors.ErrNotFound when no cart is persisted.
	Get(ctx context.Context, customerID string) (*domain.Cart, error)

	// Save persists the cart unconditionally, overwriting any existing one.
	Save(ctx context.Context, cart *domain.Cart) error

	// SaveIfVersion persists the cart only when the stored version still
	// equals expectedVersion (0 means "no cart stored yet"). On success the
	// cart's version is advanced to expectedVersion+1. Returns false without
	// error when the version check fails.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error)

	// Delete removes the customer's cart. Deleting an absent cart is not an
	// error.
	Delete(ctx context.Context, customerID string) error
}
