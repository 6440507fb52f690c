package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macaronshop/storefront/internal/catalog"
	"github.com/macaronshop/storefront/internal/domain"
	"github.com/macaronshop/storefront/internal/event"
	"github.com/macaronshop/storefront/internal/service"
	apperrors "github.com/macaronshop/storefront/pkg/errors"
	"github.com/macaronshop/storefront/pkg/health"
)

// fakeRepo is an in-memory cart repository so handler tests exercise the
// full service stack without Redis.
type fakeRepo struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{carts: make(map[string]*domain.Cart)}
}

func copyCart(c *domain.Cart) *domain.Cart {
	buf, _ := json.Marshal(c)
	var out domain.Cart
	_ = json.Unmarshal(buf, &out)
	return &out
}

func (r *fakeRepo) Get(_ context.Context, customerID string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[customerID]
	if !ok {
		return nil, apperrors.NotFound("cart", customerID)
	}
	return copyCart(cart), nil
}

func (r *fakeRepo) Save(_ context.Context, cart *domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[cart.CustomerID] = copyCart(cart)
	return nil
}

func (r *fakeRepo) SaveIfVersion(_ context.Context, cart *domain.Cart, expectedVersion int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.carts[cart.CustomerID]
	if !ok {
		if expectedVersion != 0 {
			return false, nil
		}
	} else if stored.Version != expectedVersion {
		return false, nil
	}
	cart.Version = expectedVersion + 1
	r.carts[cart.CustomerID] = copyCart(cart)
	return true, nil
}

func (r *fakeRepo) Delete(_ context.Context, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, customerID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := testLogger()
	store := catalog.New()
	repo := newFakeRepo()
	producer := event.NewProducer(nil, logger)
	cartService := service.NewCartService(repo, store, producer, logger, 24*time.Hour)
	coordinator := service.NewPromoCoordinator(cartService, store, store, logger, 30*time.Minute)

	router := NewRouter(cartService, coordinator, store, health.NewHandler(), logger, RouterConfig{})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, customerID string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if customerID != "" {
		req.Header.Set("X-Customer-ID", customerID)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var envelope map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func decodeCart(t *testing.T, raw json.RawMessage) *domain.Cart {
	t.Helper()
	var cart domain.Cart
	require.NoError(t, json.Unmarshal(raw, &cart))
	return &cart
}

func TestCartEndpoints_RequireCustomerIdentity(t *testing.T) {
	srv := setupServer(t)

	resp, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/cart", "", nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(envelope["error"]), "UNAUTHORIZED")
}

func TestGetCart_ReturnsEmptyCart(t *testing.T) {
	srv := setupServer(t)

	resp, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/cart", "cust-1", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart := decodeCart(t, envelope["data"])
	assert.Equal(t, "cust-1", cart.CustomerID)
	assert.Empty(t, cart.Items)
	assert.Equal(t, int64(0), cart.TotalPrice.CentAmount)
}

func TestAddItem_EndToEnd(t *testing.T) {
	srv := setupServer(t)

	resp, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/cart/items", "cust-1",
		AddItemRequest{ProductID: "prod-pistachio", VariantID: "1", Quantity: 2})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart := decodeCart(t, envelope["data"])
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(700), cart.TotalPrice.CentAmount)
	assert.Equal(t, 1, cart.Version)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	srv := setupServer(t)

	resp, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/cart/items", "cust-1",
		AddItemRequest{ProductID: "prod-nope", Quantity: 1})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(envelope["error"]), "NOT_FOUND")
}

func TestAddItem_ValidationError(t *testing.T) {
	srv := setupServer(t)

	resp, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/cart/items", "cust-1",
		map[string]any{"product_id": "", "quantity": 0})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(envelope["error"]), "VALIDATION_ERROR")
}

func TestUpdateLineItemQuantity_ZeroRemovesLine(t *testing.T) {
	srv := setupServer(t)

	_, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/cart/items", "cust-1",
		AddItemRequest{ProductID: "prod-pistachio", VariantID: "1", Quantity: 2})
	cart := decodeCart(t, envelope["data"])
	lineItemID := cart.Items[0].ID

	resp, envelope := doRequest(t, srv, http.MethodPut,
		fmt.Sprintf("/api/v1/cart/items/%s", lineItemID), "cust-1",
		UpdateQuantityRequest{Quantity: 0})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart = decodeCart(t, envelope["data"])
	assert.Empty(t, cart.Items)
	assert.Equal(t, int64(0), cart.TotalPrice.CentAmount)
}

func TestRemoveLineItem_AbsentIsNoop(t *testing.T) {
	srv := setupServer(t)

	_, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/cart/items", "cust-1",
		AddItemRequest{ProductID: "prod-pistachio", VariantID: "1", Quantity: 2})
	require.NotNil(t, envelope["data"])

	resp, envelope := doRequest(t, srv, http.MethodDelete, "/api/v1/cart/items/li-nope", "cust-1", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart := decodeCart(t, envelope["data"])
	assert.Len(t, cart.Items, 1)
}

func TestClearCart_ReturnsFreshCart(t *testing.T) {
	srv := setupServer(t)

	_, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/cart/items", "cust-1",
		AddItemRequest{ProductID: "prod-pistachio", VariantID: "1", Quantity: 2})
	oldCart := decodeCart(t, envelope["data"])

	resp, envelope := doRequest(t, srv, http.MethodDelete, "/api/v1/cart", "cust-1", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart := decodeCart(t, envelope["data"])
	assert.NotEqual(t, oldCart.ID, cart.ID)
	assert.Empty(t, cart.Items)
}

func TestApplyPromoCode_Effective(t *testing.T) {
	srv := setupServer(t)

	_, _ = doRequest(t, srv, http.MethodPost, "/api/v1/cart/items", "cust-1",
		AddItemRequest{ProductID: "prod-pistachio", VariantID: "1", Quantity: 2})

	resp, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/cart/promo-codes", "cust-1",
		ApplyPromoRequest{Code: "WELCOME10"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result ApplyPromoResult
	require.NoError(t, json.Unmarshal(envelope["data"], &result))
	assert.True(t, result.Applied)
	assert.Equal(t, int64(630), result.Cart.TotalPrice.CentAmount)
	require.Len(t, result.PromoCodes, 1)
	assert.Equal(t, "WELCOME10", result.PromoCodes[0].Code)
}

func TestApplyPromoCode_IneffectiveRolledBack(t *testing.T) {
	srv := setupServer(t)

	_, _ = doRequest(t, srv, http.MethodPost, "/api/v1/cart/items", "cust-1",
		AddItemRequest{ProductID: "prod-pistachio", VariantID: "1", Quantity: 2})

	resp, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/cart/promo-codes", "cust-1",
		ApplyPromoRequest{Code: "SHIPFREE"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result ApplyPromoResult
	require.NoError(t, json.Unmarshal(envelope["data"], &result))
	assert.False(t, result.Applied)
	assert.NotEmpty(t, result.Reason)
	assert.Empty(t, result.Cart.DiscountCodes)
	assert.Equal(t, int64(700), result.Cart.TotalPrice.CentAmount)
}

func TestApplyPromoCode_Unknown(t *testing.T) {
	srv := setupServer(t)

	resp, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/cart/promo-codes", "cust-1",
		ApplyPromoRequest{Code: "NOPE123"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(envelope["error"]), "INVALID_INPUT")
}

func TestRemovePromoCode_EndToEnd(t *testing.T) {
	srv := setupServer(t)

	_, _ = doRequest(t, srv, http.MethodPost, "/api/v1/cart/items", "cust-1",
		AddItemRequest{ProductID: "prod-pistachio", VariantID: "1", Quantity: 2})
	_, _ = doRequest(t, srv, http.MethodPost, "/api/v1/cart/promo-codes", "cust-1",
		ApplyPromoRequest{Code: "WELCOME10"})

	resp, envelope := doRequest(t, srv, http.MethodDelete,
		"/api/v1/cart/promo-codes/dc-welcome10", "cust-1", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart := decodeCart(t, envelope["data"])
	assert.Empty(t, cart.DiscountCodes)
	assert.Equal(t, int64(700), cart.TotalPrice.CentAmount)
}

func TestListProducts(t *testing.T) {
	srv := setupServer(t)

	resp, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/products?sort=price_asc", "", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Data       []domain.Product `json:"data"`
		TotalCount int              `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(envelope["data"], &result))
	assert.NotEmpty(t, result.Data)
	assert.Equal(t, len(result.Data), result.TotalCount)
}

func TestGetProduct(t *testing.T) {
	srv := setupServer(t)

	resp, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/products/prod-pistachio", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var product domain.Product
	require.NoError(t, json.Unmarshal(envelope["data"], &product))
	assert.Equal(t, "prod-pistachio", product.ID)

	resp, _ = doRequest(t, srv, http.MethodGet, "/api/v1/products/prod-nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListCategories(t *testing.T) {
	srv := setupServer(t)

	resp, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/categories", "", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var categories []domain.Category
	require.NoError(t, json.Unmarshal(envelope["data"], &categories))
	assert.NotEmpty(t, categories)
}

func TestAvailablePromoCodes(t *testing.T) {
	srv := setupServer(t)

	resp, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/promo-codes", "", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var codes []domain.ActivePromoCode
	require.NoError(t, json.Unmarshal(envelope["data"], &codes))
	assert.NotEmpty(t, codes)
}

func TestContentTypeJSON_Rejected(t *testing.T) {
	srv := setupServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/cart/items", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Customer-ID", "cust-1")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}
