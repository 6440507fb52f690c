package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/macaronshop/storefront/internal/catalog"
	"github.com/macaronshop/storefront/internal/domain"
	"github.com/macaronshop/storefront/internal/event"
	apperrors "github.com/macaronshop/storefront/pkg/errors"
)

// --- Mock Repository ---

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, customerID string) (*domain.Cart, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *mockCartRepository) SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error) {
	args := m.Called(ctx, cart, expectedVersion)
	return args.Bool(0), args.Error(1)
}

func (m *mockCartRepository) Delete(ctx context.Context, customerID string) error {
	args := m.Called(ctx, customerID)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(repo *mockCartRepository) *CartService {
	logger := newTestLogger()
	producer := event.NewProducer(nil, logger)
	return NewCartService(repo, catalog.New(), producer, logger, 7*24*time.Hour)
}

func newCartWithItem(customerID string) *domain.Cart {
	now := time.Now().UTC()
	return &domain.Cart{
		ID:         "cart-123",
		CustomerID: customerID,
		Items: []domain.CartItem{
			{
				ID:        "li-1",
				ProductID: "prod-pistachio",
				VariantID: "1",
				Name:      "Pistachio Macaron",
				SKU:       "MAC-PIST-6",
				Price:     350,
				Quantity:  2,
			},
		},
		DiscountCodes: []domain.DiscountCodeRef{},
		Currency:      "USD",
		Version:       3,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(7 * 24 * time.Hour),
	}
}

// --- Tests ---

func TestGetCart_Empty(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "cust-1").Return(nil, apperrors.NotFound("cart", "cust-1"))

	cart, err := svc.GetCart(ctx, "cust-1")

	require.NoError(t, err)
	assert.NotEmpty(t, cart.ID)
	assert.Equal(t, "cust-1", cart.CustomerID)
	assert.Empty(t, cart.Items)
	assert.Equal(t, "USD", cart.Currency)
	assert.Equal(t, 0, cart.Version)
	assert.Equal(t, int64(0), cart.TotalPrice.CentAmount)
	assert.Nil(t, cart.DiscountOnTotalPrice)

	repo.AssertExpectations(t)
}

func TestGetCart_Existing(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	expected := newCartWithItem("cust-1")
	repo.On("Get", ctx, "cust-1").Return(expected, nil)

	cart, err := svc.GetCart(ctx, "cust-1")

	require.NoError(t, err)
	assert.Equal(t, expected, cart)

	repo.AssertExpectations(t)
}

func TestAddItem_NewLine(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "cust-1").Return(nil, apperrors.NotFound("cart", "cust-1"))
	repo.On("SaveIfVersion", ctx, mock.Anything, 0).Return(true, nil)

	cart, err := svc.AddItem(ctx, "cust-1", "prod-pistachio", "1", 3)

	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	item := cart.Items[0]
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "prod-pistachio", item.ProductID)
	assert.Equal(t, "1", item.VariantID)
	assert.NotEmpty(t, item.Name)
	assert.Equal(t, int64(350), item.Price)
	assert.Equal(t, 3, item.Quantity)
	assert.Equal(t, int64(1050), cart.TotalPrice.CentAmount)
	assert.Nil(t, cart.DiscountOnTotalPrice)

	repo.AssertExpectations(t)
}

func TestAddItem_DefaultsToMasterVariant(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "cust-1").Return(nil, apperrors.NotFound("cart", "cust-1"))
	repo.On("SaveIfVersion", ctx, mock.Anything, 0).Return(true, nil)

	cart, err := svc.AddItem(ctx, "cust-1", "prod-pistachio", "", 1)

	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "1", cart.Items[0].VariantID)

	repo.AssertExpectations(t)
}

func TestAddItem_MergesExistingLine(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1")
	repo.On("Get", ctx, "cust-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, existing, 3).Return(true, nil)

	cart, err := svc.AddItem(ctx, "cust-1", "prod-pistachio", "1", 3)

	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, int64(1750), cart.TotalPrice.CentAmount)

	repo.AssertExpectations(t)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "cust-1").Return(nil, apperrors.NotFound("cart", "cust-1"))

	_, err := svc.AddItem(ctx, "cust-1", "prod-nope", "", 1)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "cust-1", "prod-pistachio", "1", 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.AddItem(ctx, "cust-1", "prod-pistachio", "1", MaxQuantityPerItem+1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAddItem_VersionConflict(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1")
	repo.On("Get", ctx, "cust-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, existing, 3).Return(false, nil)

	_, err := svc.AddItem(ctx, "cust-1", "prod-pistachio", "1", 1)

	assert.ErrorIs(t, err, apperrors.ErrConflict)

	repo.AssertExpectations(t)
}

func TestUpdateLineItemQuantity(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1")
	repo.On("Get", ctx, "cust-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, existing, 3).Return(true, nil)

	cart, err := svc.UpdateLineItemQuantity(ctx, "cust-1", "li-1", 4)

	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.Equal(t, int64(1400), cart.TotalPrice.CentAmount)

	repo.AssertExpectations(t)
}

func TestUpdateLineItemQuantity_ZeroRemoves(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1")
	repo.On("Get", ctx, "cust-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, existing, 3).Return(true, nil)

	cart, err := svc.UpdateLineItemQuantity(ctx, "cust-1", "li-1", 0)

	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, int64(0), cart.TotalPrice.CentAmount)

	repo.AssertExpectations(t)
}

func TestUpdateLineItemQuantity_UnknownLine(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1")
	repo.On("Get", ctx, "cust-1").Return(existing, nil)

	_, err := svc.UpdateLineItemQuantity(ctx, "cust-1", "li-nope", 4)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRemoveLineItem_AbsentIsNoop(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1")
	repo.On("Get", ctx, "cust-1").Return(existing, nil)

	cart, err := svc.RemoveLineItem(ctx, "cust-1", "li-nope")

	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	repo.AssertNotCalled(t, "SaveIfVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveLineItem(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1")
	repo.On("Get", ctx, "cust-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, existing, 3).Return(true, nil)

	cart, err := svc.RemoveLineItem(ctx, "cust-1", "li-1")

	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	repo.AssertExpectations(t)
}

func TestClearCart_ResetsIdentity(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	repo.On("Delete", ctx, "cust-1").Return(nil)
	repo.On("Save", ctx, mock.Anything).Return(nil)

	cart, err := svc.ClearCart(ctx, "cust-1")

	require.NoError(t, err)
	assert.NotEqual(t, "cart-123", cart.ID)
	assert.Empty(t, cart.Items)
	assert.Empty(t, cart.DiscountCodes)
	assert.Equal(t, 0, cart.Version)
	assert.Equal(t, int64(0), cart.TotalPrice.CentAmount)

	repo.AssertExpectations(t)
}

func TestApplyPromoCode_RelativeDiscount(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1") // subtotal 700
	repo.On("Get", ctx, "cust-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, existing, 3).Return(true, nil)

	cart, err := svc.ApplyPromoCode(ctx, "cust-1", "WELCOME10")

	require.NoError(t, err)
	require.Len(t, cart.DiscountCodes, 1)
	assert.Equal(t, "dc-welcome10", cart.DiscountCodes[0].DiscountCodeID)
	require.NotNil(t, cart.DiscountOnTotalPrice)
	assert.Equal(t, int64(70), cart.DiscountOnTotalPrice.DiscountedAmount.CentAmount)
	assert.Equal(t, int64(630), cart.TotalPrice.CentAmount)
	require.Len(t, cart.DiscountOnTotalPrice.IncludedDiscounts, 1)
	assert.Equal(t, "cd-ten-percent", cart.DiscountOnTotalPrice.IncludedDiscounts[0].CartDiscountID)

	repo.AssertExpectations(t)
}

func TestApplyPromoCode_StacksWithExisting(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1")
	existing.Items[0].Quantity = 10 // subtotal 3500
	existing.DiscountCodes = []domain.DiscountCodeRef{{DiscountCodeID: "dc-welcome10"}}
	repo.On("Get", ctx, "cust-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, existing, 3).Return(true, nil)

	cart, err := svc.ApplyPromoCode(ctx, "cust-1", "MACARON5")

	require.NoError(t, err)
	require.NotNil(t, cart.DiscountOnTotalPrice)
	// 10% of 3500 plus a flat 500.
	assert.Equal(t, int64(850), cart.DiscountOnTotalPrice.DiscountedAmount.CentAmount)
	assert.Equal(t, int64(2650), cart.TotalPrice.CentAmount)
	assert.Len(t, cart.DiscountOnTotalPrice.IncludedDiscounts, 2)

	repo.AssertExpectations(t)
}

func TestApplyPromoCode_DiscountClampedAtSubtotal(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1")
	existing.Items[0].Price = 150
	existing.Items[0].Quantity = 2 // subtotal 300, below the $5 code
	repo.On("Get", ctx, "cust-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, existing, 3).Return(true, nil)

	cart, err := svc.ApplyPromoCode(ctx, "cust-1", "MACARON5")

	require.NoError(t, err)
	require.NotNil(t, cart.DiscountOnTotalPrice)
	assert.Equal(t, int64(300), cart.DiscountOnTotalPrice.DiscountedAmount.CentAmount)
	assert.Equal(t, int64(0), cart.TotalPrice.CentAmount)

	repo.AssertExpectations(t)
}

func TestApplyPromoCode_CapOnRelativeDiscount(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1")
	existing.Items[0].Price = 3600
	existing.Items[0].Quantity = 5 // subtotal 18000, 20% would be 3600
	repo.On("Get", ctx, "cust-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, existing, 3).Return(true, nil)

	cart, err := svc.ApplyPromoCode(ctx, "cust-1", "SWEET20")

	require.NoError(t, err)
	require.NotNil(t, cart.DiscountOnTotalPrice)
	assert.Equal(t, int64(2500), cart.DiscountOnTotalPrice.DiscountedAmount.CentAmount)
	assert.Equal(t, int64(15500), cart.TotalPrice.CentAmount)

	repo.AssertExpectations(t)
}

func TestApplyPromoCode_IneffectiveTypeLeavesTotalUnchanged(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1") // subtotal 700
	repo.On("Get", ctx, "cust-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, existing, 3).Return(true, nil)

	cart, err := svc.ApplyPromoCode(ctx, "cust-1", "SHIPFREE")

	require.NoError(t, err)
	require.Len(t, cart.DiscountCodes, 1)
	assert.Equal(t, int64(700), cart.TotalPrice.CentAmount)
	assert.Nil(t, cart.DiscountOnTotalPrice)

	repo.AssertExpectations(t)
}

func TestApplyPromoCode_Rejections(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"unknown", "NOPE123"},
		{"expired", "NOEL24"},
		{"inactive", "RETIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockCartRepository)
			svc := newTestService(repo)

			_, err := svc.ApplyPromoCode(context.Background(), "cust-1", tt.code)

			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestApplyPromoCode_AlreadyApplied(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1")
	existing.DiscountCodes = []domain.DiscountCodeRef{{DiscountCodeID: "dc-welcome10"}}
	repo.On("Get", ctx, "cust-1").Return(existing, nil)

	_, err := svc.ApplyPromoCode(ctx, "cust-1", "WELCOME10")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRemovePromoCode(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1")
	existing.DiscountCodes = []domain.DiscountCodeRef{{DiscountCodeID: "dc-welcome10"}}
	repo.On("Get", ctx, "cust-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, existing, 3).Return(true, nil)

	cart, err := svc.RemovePromoCode(ctx, "cust-1", "dc-welcome10")

	require.NoError(t, err)
	assert.Empty(t, cart.DiscountCodes)
	assert.Equal(t, int64(700), cart.TotalPrice.CentAmount)
	assert.Nil(t, cart.DiscountOnTotalPrice)

	repo.AssertExpectations(t)
}

func TestRemovePromoCode_NotPresent(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	existing := newCartWithItem("cust-1")
	repo.On("Get", ctx, "cust-1").Return(existing, nil)

	_, err := svc.RemovePromoCode(ctx, "cust-1", "dc-welcome10")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRecomputeTotals_Idempotent(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	cart := newCartWithItem("cust-1")
	cart.DiscountCodes = []domain.DiscountCodeRef{{DiscountCodeID: "dc-welcome10"}}

	svc.recomputeTotals(ctx, cart)
	first := cart.TotalPrice.CentAmount
	svc.recomputeTotals(ctx, cart)

	assert.Equal(t, first, cart.TotalPrice.CentAmount)
	assert.Equal(t, int64(630), cart.TotalPrice.CentAmount)
}

func TestRecomputeTotals_SkipsDanglingCodeRefs(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	cart := newCartWithItem("cust-1")
	cart.DiscountCodes = []domain.DiscountCodeRef{{DiscountCodeID: "dc-ghost"}}

	svc.recomputeTotals(ctx, cart)

	assert.Equal(t, int64(700), cart.TotalPrice.CentAmount)
	assert.Nil(t, cart.DiscountOnTotalPrice)
}
