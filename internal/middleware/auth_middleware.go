package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stayhaven/booking-backend/pkg/jwt"
)

// UserContextKey is the gin context key holding the authenticated user.
const UserContextKey = "user"

// UserContext is the identity handlers read after authentication.
type UserContext struct {
	UserID  uuid.UUID `json:"user_id"`
	Email   string    `json:"email"`
	IsAdmin bool      `json:"is_admin"`
}

func abortUnauthorized(c *gin.Context, errKey, message, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   errKey,
		"message": message,
		"code":    code,
	})
}

// AuthMiddleware authenticates requests with a Bearer access token and
// stores the resulting UserContext for downstream handlers.
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "unauthorized",
				"Authorization header is required", "MISSING_AUTH_HEADER")
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !found || scheme != "Bearer" || token == "" {
			abortUnauthorized(c, "unauthorized",
				"Expected 'Bearer <token>' authorization", "INVALID_AUTH_FORMAT")
			return
		}

		claims, err := jwtService.ValidateAccessToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortUnauthorized(c, "token_expired",
					"Access token has expired. Please sign in again.", "TOKEN_EXPIRED")
				return
			}
			abortUnauthorized(c, "invalid_token",
				"Invalid access token", "INVALID_TOKEN")
			return
		}

		c.Set(UserContextKey, UserContext{
			UserID:  claims.UserID,
			Email:   claims.Email,
			IsAdmin: claims.IsAdmin,
		})
		c.Next()
	}
}

// RequireAdmin gates a route to admin users. It must run after
// AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, ok := GetUserContext(c)
		if !ok {
			abortUnauthorized(c, "unauthorized",
				"Authentication is required before admin checks", "MISSING_USER_CONTEXT")
			return
		}

		if !userCtx.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Administrator access is required for this resource",
				"code":    "INSUFFICIENT_PERMISSIONS",
			})
			return
		}

		c.Next()
	}
}

// GetUserContext returns the authenticated user, when one is set.
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}
	userCtx, ok := value.(UserContext)
	return userCtx, ok
}

// MustGetUserContext returns the authenticated user or panics. Only for
// handlers that are always registered behind AuthMiddleware.
func MustGetUserContext(c *gin.Context) UserContext {
	userCtx, ok := GetUserContext(c)
	if !ok {
		panic("user context not set, AuthMiddleware missing from the route")
	}
	return userCtx
}
