package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gfranca/shortly/go-server/internal/token"
)

const (
	userIDKey = "user_id"
	claimsKey = "claims"
)

var (
	ErrMissingToken = errors.New("missing authorization header")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// RequireAuth rejects the request with 401 unless a valid Bearer token is
// present. The user id is stored in the gin context for handlers.
func RequireAuth(tm *token.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c, tm)
		if err != nil {
			code := "INVALID_TOKEN"
			if errors.Is(err, ErrMissingToken) {
				code = "MISSING_TOKEN"
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
				"code":  code,
			})
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Set(userIDKey, claims.UserID)

		c.Next()
	}
}

// OptionalAuth attaches an identity when a valid Bearer token is present and
// proceeds anonymously otherwise. The identity is computed once here; a
// missing or bad token is not an error on these routes.
func OptionalAuth(tm *token.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := bearerClaims(c, tm); err == nil {
			c.Set(claimsKey, claims)
			c.Set(userIDKey, claims.UserID)
		}

		c.Next()
	}
}

func bearerClaims(c *gin.Context, tm *token.Manager) (*token.CustomClaims, error) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, ErrMissingToken
	}

	claims, err := tm.Validate(strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserIDFromContext returns the authenticated user's id, or nil for an
// anonymous request.
func UserIDFromContext(c *gin.Context) *uuid.UUID {
	value, exists := c.Get(userIDKey)
	if !exists {
		return nil
	}

	userID, ok := value.(*uuid.UUID)
	if !ok {
		return nil
	}
	return userID
}

func GetClaimsFromContext(c *gin.Context) (*token.CustomClaims, error) {
	value, exists := c.Get(claimsKey)
	if !exists {
		return nil, errors.New("claims not found in context")
	}

	claims, ok := value.(*token.CustomClaims)
	if !ok {
		return nil, errors.New("invalid claims type in context")
	}

	return claims, nil
}
