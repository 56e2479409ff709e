// internal/interfaces/http/middleware/identity.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/configurator-backend/internal/domain/cart"
	"github.com/your-org/configurator-backend/internal/pkg/auth"
)

const (
	UserIDKey      = "user_id"
	TokenClaimsKey = "token_claims"
)

// Identity reads an optional bearer token. A valid token attributes the
// request, and every cart event it causes, to the user; guests and invalid
// tokens continue anonymously.
func Identity(jwtManager *auth.JWTManager, logger *logrus.Logger) gin.HandlerFunc {
	if jwtManager == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		tokenString := auth.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			c.Next()
			return
		}

		claims, err := jwtManager.ValidateAccessToken(tokenString)
		if err != nil {
			logger.WithError(err).WithField("request_id", c.GetString(RequestIDKey)).Debug("Ignoring invalid bearer token")
			c.Next()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(TokenClaimsKey, claims)
		c.Request = c.Request.WithContext(cart.ContextWithUserID(c.Request.Context(), claims.UserID))
		c.Next()
	}
}

// GetUserIDFromContext returns the authenticated user id, if any
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID := c.GetString(UserIDKey)
	return userID, userID != ""
}

// RequireRole rejects requests whose token does not carry role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(TokenClaimsKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}
		if claims, ok := value.(*auth.Claims); !ok || claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}
		c.Next()
	}
}
