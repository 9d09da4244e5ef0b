package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopmesh/shopmesh/internal/product/domain"
	"github.com/shopmesh/shopmesh/internal/product/repository"
	"github.com/shopmesh/shopmesh/pkg/httpx"
)

type ProductService interface {
	List(ctx context.Context) ([]*domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
}

type ProductHandler struct {
	service ProductService
}

func NewProductHandler(service ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// PublicRoutes are the read endpoints, served without authentication.
func (h *ProductHandler) PublicRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// ProtectedRoutes are the catalog mutations, mounted behind the auth
// gate.
func (h *ProductHandler) ProtectedRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type ProductRequestDTO struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	ImageURL    string   `json:"imageUrl"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	httpx.RespondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeProduct(w, r)
	if !ok {
		return
	}

	product := &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		ImageURL:    req.ImageURL,
	}
	if err := h.service.Create(r.Context(), product); err != nil {
		handleServiceError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeProduct(w, r)
	if !ok {
		return
	}

	product := &domain.Product{
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		ImageURL:    req.ImageURL,
	}
	if err := h.service.Update(r.Context(), product); err != nil {
		handleServiceError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func decodeProduct(w http.ResponseWriter, r *http.Request) (*ProductRequestDTO, bool) {
	var req ProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return nil, false
	}
	if req.Name == "" {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_name", "name is required")
		return nil, false
	}
	if req.Price == nil || *req.Price < 0 {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_price", "price is required and must not be negative")
		return nil, false
	}
	return &req, true
}

func handleServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrProductNotFound) {
		httpx.RespondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	httpx.RespondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
