package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmesh/shopmesh/internal/auth"
	"github.com/shopmesh/shopmesh/internal/cart/domain"
	"github.com/shopmesh/shopmesh/internal/cart/store"
	"github.com/shopmesh/shopmesh/pkg/httpx"
)

type serviceMock struct {
	cart *domain.Cart
	err  error

	gotUserID    string
	gotProductID string
	gotItem      domain.CartItem
	gotQuantity  int
}

func (s *serviceMock) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	s.gotUserID = userID
	return s.cart, s.err
}

func (s *serviceMock) AddItem(_ context.Context, userID string, item domain.CartItem) (*domain.Cart, error) {
	s.gotUserID = userID
	s.gotItem = item
	return s.cart, s.err
}

func (s *serviceMock) UpdateQuantity(_ context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	s.gotUserID = userID
	s.gotProductID = productID
	s.gotQuantity = quantity
	return s.cart, s.err
}

func (s *serviceMock) RemoveItem(_ context.Context, userID, productID string) (*domain.Cart, error) {
	s.gotUserID = userID
	s.gotProductID = productID
	return s.cart, s.err
}

func (s *serviceMock) ClearCart(_ context.Context, userID string) (*domain.Cart, error) {
	s.gotUserID = userID
	return s.cart, s.err
}

// newTestRouter mounts the handler the way the service main does, with
// a stand-in auth middleware that injects a fixed identity.
func newTestRouter(svc CartService, authed bool) http.Handler {
	r := chi.NewRouter()
	if authed {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := auth.WithIdentity(req.Context(), auth.Identity{
					UserID:   "user1",
					Username: "tester",
					Email:    "tester@example.com",
				})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
	}
	r.Route("/api/cart", NewCartHandler(svc).Routes)
	return r
}

func testCart() *domain.Cart {
	cart := domain.NewCart("user1")
	cart.AddItem(domain.CartItem{ProductID: "p1", Name: "Widget", Price: 9.99, Quantity: 2})
	return cart
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) domain.View {
	t.Helper()
	var view domain.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	return view
}

func TestGetCart_ReturnsProjection(t *testing.T) {
	svc := &serviceMock{cart: testCart()}
	rec := doRequest(t, newTestRouter(svc, true), http.MethodGet, "/api/cart", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	assert.Equal(t, "user1", view.UserID)
	assert.Equal(t, 19.98, view.Total)
	assert.Equal(t, 2, view.ItemCount)
	assert.Equal(t, "user1", svc.gotUserID)
}

func TestGetCart_Unauthenticated(t *testing.T) {
	rec := doRequest(t, newTestRouter(&serviceMock{}, false), http.MethodGet, "/api/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddItem_Success(t *testing.T) {
	svc := &serviceMock{cart: testCart()}
	rec := doRequest(t, newTestRouter(svc, true), http.MethodPost, "/api/cart/items", map[string]interface{}{
		"productId": "p1",
		"name":      "Widget",
		"price":     9.99,
		"quantity":  2,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", svc.gotItem.ProductID)
	assert.Equal(t, 2, svc.gotItem.Quantity)
	view := decodeView(t, rec)
	assert.Equal(t, 19.98, view.Total)
}

func TestAddItem_ZeroPriceAllowed(t *testing.T) {
	svc := &serviceMock{cart: testCart()}
	rec := doRequest(t, newTestRouter(svc, true), http.MethodPost, "/api/cart/items", map[string]interface{}{
		"productId": "freebie",
		"name":      "Sticker",
		"price":     0,
		"quantity":  1,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, svc.gotItem.Price)
}

func TestAddItem_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing productId", map[string]interface{}{"name": "Widget", "price": 9.99, "quantity": 1}},
		{"missing name", map[string]interface{}{"productId": "p1", "price": 9.99, "quantity": 1}},
		{"missing price", map[string]interface{}{"productId": "p1", "name": "Widget", "quantity": 1}},
		{"negative price", map[string]interface{}{"productId": "p1", "name": "Widget", "price": -1, "quantity": 1}},
		{"missing quantity", map[string]interface{}{"productId": "p1", "name": "Widget", "price": 9.99}},
		{"zero quantity", map[string]interface{}{"productId": "p1", "name": "Widget", "price": 9.99, "quantity": 0}},
		{"negative quantity", map[string]interface{}{"productId": "p1", "name": "Widget", "price": 9.99, "quantity": -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, newTestRouter(&serviceMock{}, true), http.MethodPost, "/api/cart/items", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAddItem_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", bytes.NewBufferString("{broken"))
	rec := httptest.NewRecorder()
	newTestRouter(&serviceMock{}, true).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateQuantity_Success(t *testing.T) {
	svc := &serviceMock{cart: testCart()}
	rec := doRequest(t, newTestRouter(svc, true), http.MethodPut, "/api/cart/items/p1", map[string]interface{}{
		"quantity": 3,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", svc.gotProductID)
	assert.Equal(t, 3, svc.gotQuantity)
}

func TestUpdateQuantity_ZeroAccepted(t *testing.T) {
	svc := &serviceMock{cart: domain.NewCart("user1")}
	rec := doRequest(t, newTestRouter(svc, true), http.MethodPut, "/api/cart/items/p1", map[string]interface{}{
		"quantity": 0,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, svc.gotQuantity)
}

func TestUpdateQuantity_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing quantity", map[string]interface{}{}},
		{"negative quantity", map[string]interface{}{"quantity": -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, newTestRouter(&serviceMock{}, true), http.MethodPut, "/api/cart/items/p1", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpdateQuantity_NotFound(t *testing.T) {
	svc := &serviceMock{err: store.ErrItemNotFound}
	rec := doRequest(t, newTestRouter(svc, true), http.MethodPut, "/api/cart/items/p1", map[string]interface{}{
		"quantity": 2,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveItem_Success(t *testing.T) {
	svc := &serviceMock{cart: domain.NewCart("user1")}
	rec := doRequest(t, newTestRouter(svc, true), http.MethodDelete, "/api/cart/items/p1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", svc.gotProductID)
}

func TestRemoveItem_CartNotFound(t *testing.T) {
	svc := &serviceMock{err: store.ErrCartNotFound}
	rec := doRequest(t, newTestRouter(svc, true), http.MethodDelete, "/api/cart/items/p1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearCart_ReturnsEmptyView(t *testing.T) {
	svc := &serviceMock{cart: domain.NewCart("user1")}
	rec := doRequest(t, newTestRouter(svc, true), http.MethodDelete, "/api/cart", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	assert.Empty(t, view.Items)
	assert.Zero(t, view.Total)
	assert.Zero(t, view.ItemCount)
}

func TestStorageError_GenericMessage(t *testing.T) {
	svc := &serviceMock{err: errors.New("redis: connection pool timeout")}
	rec := doRequest(t, newTestRouter(svc, true), http.MethodGet, "/api/cart", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp httpx.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "internal server error", resp.Error)
	assert.NotContains(t, resp.Error, "redis")
}
