package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shopmesh/shopmesh/pkg/httpx"
)

type contextKey struct{}

var identityKey contextKey

// Middleware validates the bearer token and attaches the authenticated
// Identity to the request context before any handler runs. Rejections:
// missing header and expired/invalid tokens are 401; anything else
// during verification is a 500.
func Middleware(secret []byte, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				if errors.Is(err, ErrMissingHeader) {
					httpx.RespondError(w, http.StatusUnauthorized, "unauthorized", "No authorization header")
				} else {
					httpx.RespondError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
				}
				return
			}

			claims, err := Verify(secret, tokenString)
			if err != nil {
				switch {
				case errors.Is(err, ErrTokenExpired):
					httpx.RespondError(w, http.StatusUnauthorized, "token_expired", "Token expired")
				case errors.Is(err, ErrInvalidToken):
					httpx.RespondError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
				default:
					logger.Error().Err(err).Msg("token verification failed")
					httpx.RespondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
				}
				return
			}

			identity := Identity{
				UserID:   claims.UserID,
				Username: claims.Username,
				Email:    claims.Email,
			}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header.
// Returns ErrMissingHeader when the header is absent and
// ErrInvalidToken when it is not a bearer credential.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingHeader
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

// FromContext returns the authenticated identity, if the auth gate ran.
func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// WithIdentity is a test seam for handlers that expect an
// authenticated context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}
