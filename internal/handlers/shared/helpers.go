package handlers

import (
	"nepway/internal/middleware"
	"nepway/internal/models"
	"nepway/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// requireIdentity returns the authenticated caller or writes a 401.
func requireIdentity(c *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		utils.UnauthorizedResponse(c, utils.ErrUnauthorized)
		return models.Identity{}, false
	}
	return identity, true
}

// pathObjectID parses the :id path parameter or writes a 400.
func pathObjectID(c *gin.Context, label string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+label+" ID")
		return primitive.NilObjectID, false
	}
	return id, true
}
