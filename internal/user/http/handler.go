package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shopmesh/shopmesh/internal/auth"
	"github.com/shopmesh/shopmesh/internal/user/domain"
	"github.com/shopmesh/shopmesh/internal/user/repository"
	"github.com/shopmesh/shopmesh/internal/user/service"
	"github.com/shopmesh/shopmesh/pkg/httpx"
)

type UserService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
}

type UserHandler struct {
	service UserService
}

func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) PublicRoutes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
}

func (h *UserHandler) ProtectedRoutes(r chi.Router) {
	r.Get("/me", h.Me)
}

type RegisterRequestDTO struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponseDTO struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Username == "" {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_username", "username is required")
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_email", "a valid email is required")
		return
	}
	if len(req.Password) < 8 {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_password", "password must be at least 8 characters")
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			httpx.RespondError(w, http.StatusConflict, "duplicate_email", "email already registered")
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	token, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.RespondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, LoginResponseDTO{Token: token, User: user})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	user, err := h.service.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			httpx.RespondError(w, http.StatusNotFound, "user_not_found", "user not found")
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, user)
}
