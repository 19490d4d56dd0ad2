package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	appError "github.com/fazamuttaqien/eventcal/pkg/app-error"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	pkgJwt "github.com/fazamuttaqien/eventcal/pkg/jwt"
	"github.com/fazamuttaqien/eventcal/types"

	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware verifies the bearer token and adds the userID to the request context.
func AuthMiddleware(signer *pkgJwt.Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				err := appError.NewAppError(enum.AuthTokenNotFound, "Authorization header not found", nil)
				appError.WriteError(w, err)
				return
			}

			userID, appErr := authenticate(signer, authHeader)
			if appErr != nil {
				appError.WriteError(w, appErr)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuthMiddleware lets anonymous requests through. A header that is present
// must still be valid.
func OptionalAuthMiddleware(signer *pkgJwt.Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, appErr := authenticate(signer, authHeader)
			if appErr != nil {
				appError.WriteError(w, appErr)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func authenticate(signer *pkgJwt.Signer, authHeader string) (string, *appError.AppError) {
	scheme, tokenString, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || tokenString == "" {
		return "", appError.NewAppError(enum.AuthInvalidToken, "Invalid authorization header format", nil)
	}

	claims, err := signer.Parse(tokenString)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", appError.NewAppError(enum.AuthInvalidToken, "Token has expired", err)
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return "", appError.NewAppError(enum.AuthInvalidToken, "Invalid token signature", err)
		default:
			return "", appError.NewAppError(enum.AuthInvalidToken, "Invalid token", err)
		}
	}
	return claims.UserID, nil
}

// GetUserIDFromContext retrieves the user ID stored by auth middleware.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(types.UserIDKey).(string)
	return userID, ok
}

// WithUserID stores userID the way AuthMiddleware does.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, types.UserIDKey, userID)
}
