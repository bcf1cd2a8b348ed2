package middleware

import (
	"strings"

	"nepway/internal/models"
	"nepway/internal/utils"
	"nepway/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthRequired validates the bearer token and stores the caller's id and
// role in the gin context. Websocket clients, which cannot set headers, may
// pass the token as the access_token query parameter.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			utils.UnauthorizedResponse(c, "Authorization header required")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			utils.UnauthorizedResponse(c, err.Error())
			c.Abort()
			return
		}

		c.Set(utils.ContextUserID, claims.UserID)
		c.Set(utils.ContextUserRole, models.UserRole(claims.UserType))
		c.Request = c.Request.WithContext(logger.ContextWithUserID(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

// DriverRequired rejects callers whose role is not driver.
func DriverRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			utils.UnauthorizedResponse(c, utils.ErrUnauthorized)
			c.Abort()
			return
		}
		if !identity.IsDriver() {
			utils.ForbiddenResponse(c, "Driver access required")
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentIdentity returns the caller stored by AuthRequired.
func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get(utils.ContextUserID)
	if !exists {
		return models.Identity{}, false
	}
	userID, ok := value.(primitive.ObjectID)
	if !ok || userID.IsZero() {
		return models.Identity{}, false
	}

	role, _ := c.Get(utils.ContextUserRole)
	userRole, _ := role.(models.UserRole)
	return models.Identity{UserID: userID, Role: userRole}, true
}

// WebSocketIdentity adapts CurrentIdentity to the websocket handler.
func WebSocketIdentity(c *gin.Context) (primitive.ObjectID, string, bool) {
	identity, ok := CurrentIdentity(c)
	return identity.UserID, string(identity.Role), ok
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token == "" {
			return "", false
		}
		return token, true
	}
	if token := c.Query("access_token"); token != "" {
		return token, true
	}
	return "", false
}
