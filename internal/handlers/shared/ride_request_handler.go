package handlers

import (
	"errors"
	"io"

	"nepway/internal/models"
	"nepway/internal/services"
	"nepway/internal/utils"
	"nepway/internal/validators"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideRequestHandler struct {
	requestService services.RideRequestService
}

func NewRideRequestHandler(requestService services.RideRequestService) *RideRequestHandler {
	return &RideRequestHandler{
		requestService: requestService,
	}
}

func (h *RideRequestHandler) CreateRequest(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var input models.CreateRideRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	request, err := h.requestService.CreateRequest(c.Request.Context(), identity, &input)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Ride request created successfully", request)
}

// ListPendingRequests lists open requests, newest first
func (h *RideRequestHandler) ListPendingRequests(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	requests, total, err := h.requestService.ListPendingRequests(c.Request.Context(), params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Ride requests retrieved successfully", requests, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

func (h *RideRequestHandler) GetMyRequests(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	requests, err := h.requestService.GetMyRequests(c.Request.Context(), identity.UserID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Ride requests retrieved successfully", requests, &utils.Meta{Count: len(requests)})
}

// AcceptRequest accepts a request onto a new ride, or onto the driver's
// existing ride when the body names one
func (h *RideRequestHandler) AcceptRequest(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	requestID, ok := pathObjectID(c, "ride request")
	if !ok {
		return
	}

	var input models.AcceptRideRequestInput
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if err := validators.Validate(&input); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	var existingRideID *primitive.ObjectID
	if input.RideID != "" {
		rideID, err := primitive.ObjectIDFromHex(input.RideID)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid ride ID")
			return
		}
		existingRideID = &rideID
	}

	result, err := h.requestService.AcceptRequest(c.Request.Context(), identity, requestID, existingRideID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride request accepted successfully", result)
}

func (h *RideRequestHandler) CancelRequest(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	requestID, ok := pathObjectID(c, "ride request")
	if !ok {
		return
	}

	request, err := h.requestService.CancelRequest(c.Request.Context(), requestID, identity.UserID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride request cancelled successfully", request)
}
