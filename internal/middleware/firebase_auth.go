package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/postboard/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// IDTokenVerifier is the part of *auth.Client the middleware needs.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseUserResolver maps a Firebase UID to the local user.
type FirebaseUserResolver func(ctx context.Context, firebaseUID string) (*models.User, error)

// FirebaseAuthMiddleware verifies Firebase ID tokens and stores the matching
// local user in the context under the same key as JWTAuthMiddleware.
func FirebaseAuthMiddleware(verifier IDTokenVerifier, resolve FirebaseUserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is missing")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header must be in Bearer format")
			}

			ctx := c.Request().Context()
			token, err := verifier.VerifyIDToken(ctx, tokenParts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired ID token")
			}

			user, err := resolve(ctx, token.UID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "No account linked to this Firebase user")
			}

			c.Set(UserContextKey, &models.JwtCustomClaims{UserID: user.ID.Hex(), Email: user.Email})
			c.Set("firebaseUID", token.UID)

			return next(c)
		}
	}
}
