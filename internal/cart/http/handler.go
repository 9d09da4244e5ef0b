package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopmesh/shopmesh/internal/auth"
	"github.com/shopmesh/shopmesh/internal/cart/domain"
	"github.com/shopmesh/shopmesh/internal/cart/store"
	"github.com/shopmesh/shopmesh/pkg/httpx"
)

// CartService is what the handlers need from the service layer.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, item domain.CartItem) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) (*domain.Cart, error)
}

type CartHandler struct {
	service CartService
}

func NewCartHandler(service CartService) *CartHandler {
	return &CartHandler{service: service}
}

// Routes mounts the cart endpoints. The auth gate is applied by the
// caller around the whole subtree.
func (h *CartHandler) Routes(r chi.Router) {
	r.Get("/", h.GetCart)
	r.Delete("/", h.ClearCart)
	r.Post("/items", h.AddItem)
	r.Put("/items/{productId}", h.UpdateQuantity)
	r.Delete("/items/{productId}", h.RemoveItem)
}

// Price and Quantity are pointers so that "field absent" and "field
// zero" validate differently: price 0 is a valid value, a missing
// price is not.
type AddItemRequestDTO struct {
	ProductID string   `json:"productId"`
	Name      string   `json:"name"`
	Price     *float64 `json:"price"`
	Quantity  *int     `json:"quantity"`
	ImageURL  string   `json:"imageUrl"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	cart, err := h.service.GetCart(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, cart.Project())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID == "" {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}
	if req.Name == "" {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_name", "name is required")
		return
	}
	if req.Price == nil || *req.Price < 0 {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_price", "price is required and must not be negative")
		return
	}
	if req.Quantity == nil || *req.Quantity < 1 {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required and must be at least 1")
		return
	}

	cart, err := h.service.AddItem(r.Context(), identity.UserID, domain.CartItem{
		ProductID: req.ProductID,
		Name:      req.Name,
		Price:     *req.Price,
		Quantity:  *req.Quantity,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, cart.Project())
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID := chi.URLParam(r, "productId")
	if productID == "" {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Quantity 0 is a deliberate removal signal, negatives are invalid.
	if req.Quantity == nil || *req.Quantity < 0 {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required and must not be negative")
		return
	}

	cart, err := h.service.UpdateQuantity(r.Context(), identity.UserID, productID, *req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, cart.Project())
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID := chi.URLParam(r, "productId")
	if productID == "" {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), identity.UserID, productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, cart.Project())
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	cart, err := h.service.ClearCart(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, cart.Project())
}

// Storage failures surface as a generic 500; the detail stays in the
// logs and the trace.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrCartNotFound):
		httpx.RespondError(w, http.StatusNotFound, "cart_not_found", "cart not found")
	case errors.Is(err, store.ErrItemNotFound):
		httpx.RespondError(w, http.StatusNotFound, "item_not_found", "item not found in cart")
	default:
		httpx.RespondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
