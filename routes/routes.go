package routes

import (
	handlers "nepway/internal/handlers/shared"
	"nepway/internal/middleware"
	"nepway/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Ride         *handlers.RideHandler
	RideRequest  *handlers.RideRequestHandler
	Driver       *handlers.DriverHandler
	Fare         *handlers.FareHandler
	Notification *handlers.NotificationHandler
	Health       *handlers.HealthHandler
	WebSocket    *websocket.Handler
}

// Setup mounts the API under /api plus the health, metrics and websocket endpoints
func Setup(router *gin.Engine, h *Handlers, jwtSecret string) {
	router.GET("/health", h.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h.WebSocket != nil {
		router.GET("/ws", middleware.AuthRequired(jwtSecret), h.WebSocket.HandleWebSocket)
	}

	api := router.Group("/api")
	SetupRideRoutes(api, h.Ride, jwtSecret)
	SetupRideRequestRoutes(api, h.RideRequest, jwtSecret)

	drivers := api.Group("/drivers")
	drivers.Use(middleware.AuthRequired(jwtSecret), middleware.DriverRequired())
	{
		drivers.GET("/stats", h.Driver.GetStats)
		drivers.GET("/availability", h.Driver.GetAvailability)
		drivers.PATCH("/availability", h.Driver.UpdateAvailability)
	}

	fares := api.Group("/fares")
	{
		fares.GET("/estimate", h.Fare.Estimate)
	}

	notifications := api.Group("/notifications")
	notifications.Use(middleware.AuthRequired(jwtSecret))
	{
		notifications.GET("", h.Notification.ListNotifications)
	}
}
