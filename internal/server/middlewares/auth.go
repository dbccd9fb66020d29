package middlewares

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openmined/skywriter/internal/auth"
	"github.com/openmined/skywriter/internal/server/handlers/api"
)

const (
	bearerPrefix     = "Bearer "
	authHeader       = "Authorization"
	deviceContextKey = "device"
)

// TokenAuth rejects every request that does not carry a valid, unused bearer
// token signed with the shared secret.
func TokenAuth(verifier *auth.Verifier) gin.HandlerFunc {
	if !verifier.IsEnabled() {
		slog.Warn("auth middleware disabled")
		return func(ctx *gin.Context) {
			ctx.Next()
		}
	}

	slog.Info("auth middleware enabled")
	return func(ctx *gin.Context) {
		value := ctx.GetHeader(authHeader)
		if !strings.HasPrefix(value, bearerPrefix) {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeAuthInvalidCredentials,
				errors.New("authorization header must be Bearer {token}"))
			return
		}

		claims, err := verifier.Verify(strings.TrimPrefix(value, bearerPrefix))
		if err != nil {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeAuthInvalidCredentials, err)
			return
		}

		ctx.Set(deviceContextKey, claims.Subject)
		ctx.Next()
	}
}

// Device returns the token subject of an authenticated request.
func Device(ctx *gin.Context) string {
	return ctx.GetString(deviceContextKey)
}
