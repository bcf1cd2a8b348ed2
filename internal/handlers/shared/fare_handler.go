package handlers

import (
	"nepway/internal/models"
	"nepway/internal/services"
	"nepway/internal/utils"
	"nepway/internal/validators"

	"github.com/gin-gonic/gin"
)

type FareHandler struct{}

func NewFareHandler() *FareHandler {
	return &FareHandler{}
}

// Estimate prices a trip between two points
func (h *FareHandler) Estimate(c *gin.Context) {
	var query models.FareEstimateQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequestResponse(c, "Invalid coordinates: "+err.Error())
		return
	}
	for _, key := range []string{"fromLat", "fromLng", "toLat", "toLng"} {
		if _, ok := c.GetQuery(key); !ok {
			utils.BadRequestResponse(c, key+" is required")
			return
		}
	}
	if err := validators.Validate(&query); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	estimate := services.EstimateFare(
		&models.Coordinates{Lat: query.FromLat, Lng: query.FromLng},
		&models.Coordinates{Lat: query.ToLat, Lng: query.ToLng},
	)
	utils.SuccessResponse(c, "Fare estimated successfully", estimate)
}
