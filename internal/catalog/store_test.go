package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/macaronshop/storefront/pkg/errors"
)

func TestStore_Products(t *testing.T) {
	s := New()

	products := s.Products()
	require.NotEmpty(t, products)
	for _, p := range products {
		assert.NotEmpty(t, p.ID)
		assert.NotEmpty(t, p.Name)
		assert.Greater(t, p.Price, int64(0))
		assert.NotEmpty(t, p.Variants, "product %s has no variants", p.ID)
	}
}

func TestStore_ProductByID(t *testing.T) {
	s := New()

	p, err := s.ProductByID("prod-pistachio")
	require.NoError(t, err)
	assert.Equal(t, "prod-pistachio", p.ID)

	_, err = s.ProductByID("prod-nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_Categories(t *testing.T) {
	s := New()

	categories := s.Categories()
	require.NotEmpty(t, categories)

	c, err := s.CategoryByID(categories[0].ID)
	require.NoError(t, err)
	assert.Equal(t, categories[0].ID, c.ID)
}

func TestStore_DiscountCodeByCode_Normalizes(t *testing.T) {
	s := New()

	for _, input := range []string{"WELCOME10", "welcome10", "  Welcome10  "} {
		code, err := s.DiscountCodeByCode(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, "dc-welcome10", code.ID)
	}

	_, err := s.DiscountCodeByCode("NOPE123")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_CartDiscountByID(t *testing.T) {
	s := New()

	d, err := s.CartDiscountByID("cd-ten-percent")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), d.Permyriad)

	_, err = s.CartDiscountByID("cd-nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_DiscountCodesReferenceKnownDiscounts(t *testing.T) {
	s := New()

	for _, code := range s.DiscountCodes() {
		for _, ref := range code.CartDiscounts {
			_, err := s.CartDiscountByID(ref.ID)
			assert.NoError(t, err, "code %s references unknown discount %s", code.Code, ref.ID)
		}
	}
}
