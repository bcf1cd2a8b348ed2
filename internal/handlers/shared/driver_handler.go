package handlers

import (
	"nepway/internal/models"
	"nepway/internal/services"
	"nepway/internal/utils"

	"github.com/gin-gonic/gin"
)

type DriverHandler struct {
	driverService services.DriverService
}

func NewDriverHandler(driverService services.DriverService) *DriverHandler {
	return &DriverHandler{
		driverService: driverService,
	}
}

// GetStats returns ride counts and earnings for the calling driver
func (h *DriverHandler) GetStats(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	stats, err := h.driverService.GetStats(c.Request.Context(), identity.UserID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Driver stats retrieved successfully", stats)
}

func (h *DriverHandler) GetAvailability(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	availability, err := h.driverService.GetAvailability(c.Request.Context(), identity.UserID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Driver availability retrieved successfully", availability)
}

// UpdateAvailability toggles whether the driver takes rides and optionally
// records their current position
func (h *DriverHandler) UpdateAvailability(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var input models.UpdateAvailabilityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	availability, err := h.driverService.SetAvailability(c.Request.Context(), identity.UserID, &input)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Driver availability updated successfully", availability)
}
