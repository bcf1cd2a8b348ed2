package handlers

import (
	"nepway/internal/models"
	"nepway/internal/services"
	"nepway/internal/utils"

	"github.com/gin-gonic/gin"
)

type RideHandler struct {
	rideService services.RideService
}

func NewRideHandler(rideService services.RideService) *RideHandler {
	return &RideHandler{
		rideService: rideService,
	}
}

// CreateRide publishes a new ride owned by the calling driver
func (h *RideHandler) CreateRide(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var input models.CreateRideInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), identity, &input)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Ride created successfully", ride)
}

// ListActiveRides lists bookable rides, soonest first
func (h *RideHandler) ListActiveRides(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	rides, total, err := h.rideService.ListActiveRides(c.Request.Context(), params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Rides retrieved successfully", rides, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

func (h *RideHandler) GetMyRides(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	rides, err := h.rideService.GetMyRides(c.Request.Context(), identity.UserID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Rides retrieved successfully", rides)
}

// BookSeat books one seat for the caller
func (h *RideHandler) BookSeat(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	rideID, ok := pathObjectID(c, "ride")
	if !ok {
		return
	}

	ride, err := h.rideService.BookSeat(c.Request.Context(), rideID, identity.UserID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Seat booked successfully", ride)
}

func (h *RideHandler) CancelRide(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	rideID, ok := pathObjectID(c, "ride")
	if !ok {
		return
	}

	ride, err := h.rideService.CancelRide(c.Request.Context(), rideID, identity.UserID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride cancelled successfully", ride)
}

func (h *RideHandler) GetRideStatus(c *gin.Context) {
	rideID, ok := pathObjectID(c, "ride")
	if !ok {
		return
	}

	status, err := h.rideService.GetRideStatus(c.Request.Context(), rideID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride status retrieved successfully", status)
}

// UpdateRideStatus moves the ride one step along its lifecycle
func (h *RideHandler) UpdateRideStatus(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	rideID, ok := pathObjectID(c, "ride")
	if !ok {
		return
	}

	var input models.UpdateRideStatusInput
	if err := c.ShouldBindJSON(&input); err != nil || input.Status == "" {
		utils.BadRequestResponse(c, "Status is required")
		return
	}

	ride, err := h.rideService.UpdateRideStatus(c.Request.Context(), rideID, identity.UserID, input.Status)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride status updated successfully", ride.StatusView())
}
