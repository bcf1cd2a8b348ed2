package routes

import (
	handlers "nepway/internal/handlers/shared"
	"nepway/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRideRoutes sets up routes for published rides
func SetupRideRoutes(r *gin.RouterGroup, rideHandler *handlers.RideHandler, jwtSecret string) {
	public := r.Group("/rides")
	{
		public.GET("", rideHandler.ListActiveRides)
	}

	rides := r.Group("/rides")
	rides.Use(middleware.AuthRequired(jwtSecret))
	{
		rides.GET("/my-rides", rideHandler.GetMyRides)
		rides.POST("/:id/book", rideHandler.BookSeat)
		rides.PATCH("/:id/cancel", rideHandler.CancelRide)

		// Lifecycle
		rides.GET("/:id/status", rideHandler.GetRideStatus)
		rides.PATCH("/:id/status", rideHandler.UpdateRideStatus)
	}

	driverRides := r.Group("/rides")
	driverRides.Use(middleware.AuthRequired(jwtSecret), middleware.DriverRequired())
	{
		driverRides.POST("", rideHandler.CreateRide)
	}
}
