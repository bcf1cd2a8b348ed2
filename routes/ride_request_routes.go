package routes

import (
	handlers "nepway/internal/handlers/shared"
	"nepway/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRideRequestRoutes sets up routes for passenger ride requests
func SetupRideRequestRoutes(r *gin.RouterGroup, requestHandler *handlers.RideRequestHandler, jwtSecret string) {
	requests := r.Group("/ride-requests")
	requests.Use(middleware.AuthRequired(jwtSecret))
	{
		requests.GET("", requestHandler.ListPendingRequests)
		requests.POST("", requestHandler.CreateRequest)
		requests.GET("/my-requests", requestHandler.GetMyRequests)
		requests.PATCH("/:id/cancel", requestHandler.CancelRequest)
	}

	driverRequests := r.Group("/ride-requests")
	driverRequests.Use(middleware.AuthRequired(jwtSecret), middleware.DriverRequired())
	{
		driverRequests.POST("/:id/accept", requestHandler.AcceptRequest)
	}
}
