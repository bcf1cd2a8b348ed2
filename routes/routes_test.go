package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nepway/internal/config"
	handlers "nepway/internal/handlers/shared"
	"nepway/internal/models"
	"nepway/internal/repositories/memory"
	"nepway/internal/services"
	"nepway/internal/utils"
	"nepway/pkg/cache"
	"nepway/pkg/events"
	"nepway/pkg/logger"
	"nepway/pkg/scheduler"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "routes-secret"

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewDiscard()
	clock := scheduler.NewFakeClock(time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC))

	rides := memory.NewRideRepository()
	requests := memory.NewRideRequestRepository()
	memCache := cache.NewMemoryCache(clock.Now)
	emitter := services.NewEventEmitter(events.NopPublisher{}, clock, time.Second, log)
	notifier := services.NewNotificationService(memory.NewNotificationRepository(), nil, nil, "user_", clock, log)
	transitions := services.NewStatusTransitioner(rides, requests, notifier, emitter, clock, log)
	progression := services.NewAutoProgression(&config.LifecycleConfig{}, scheduler.New(clock, log, 0), memCache, rides, transitions, log)

	router := gin.New()
	Setup(router, &Handlers{
		Ride:         handlers.NewRideHandler(services.NewRideService(rides, transitions, progression, notifier, emitter, clock, log)),
		RideRequest:  handlers.NewRideRequestHandler(services.NewRideRequestService(requests, rides, progression, notifier, emitter, clock, log)),
		Driver:       handlers.NewDriverHandler(services.NewDriverService(rides, memory.NewDriverAvailabilityRepository(), clock, time.UTC)),
		Fare:         handlers.NewFareHandler(),
		Notification: handlers.NewNotificationHandler(notifier),
		Health:       handlers.NewHealthHandler("test", map[string]handlers.Pinger{"cache": memCache}),
	}, testSecret)
	return router
}

func token(t *testing.T, role models.UserRole) string {
	t.Helper()
	signed, err := utils.GenerateAccessToken(primitive.NewObjectID(), string(role), "nepway-test", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return signed
}

func TestSetup(t *testing.T) {
	router := newRouter(t)
	rider := token(t, models.UserRoleRider)
	driver := token(t, models.UserRoleDriver)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics are public", http.MethodGet, "/metrics", "", http.StatusOK},
		{"fare estimate is public", http.MethodGet, "/api/fares/estimate?fromLat=27.7&fromLng=85.3&toLat=27.6&toLng=85.2", "", http.StatusOK},
		{"rides list is public", http.MethodGet, "/api/rides", "", http.StatusOK},
		{"rides list with a token", http.MethodGet, "/api/rides", rider, http.StatusOK},
		{"my rides need a token", http.MethodGet, "/api/rides/my-rides", "", http.StatusUnauthorized},
		{"my rides is not an id", http.MethodGet, "/api/rides/my-rides", rider, http.StatusOK},
		{"riders cannot publish rides", http.MethodPost, "/api/rides", rider, http.StatusForbidden},
		{"my requests is not an id", http.MethodGet, "/api/ride-requests/my-requests", rider, http.StatusOK},
		{"riders cannot accept", http.MethodPost, "/api/ride-requests/" + primitive.NewObjectID().Hex() + "/accept", rider, http.StatusForbidden},
		{"drivers see stats", http.MethodGet, "/api/drivers/stats", driver, http.StatusOK},
		{"riders do not", http.MethodGet, "/api/drivers/stats", rider, http.StatusForbidden},
		{"drivers read availability", http.MethodGet, "/api/drivers/availability", driver, http.StatusOK},
		{"riders cannot read availability", http.MethodGet, "/api/drivers/availability", rider, http.StatusForbidden},
		{"riders cannot set availability", http.MethodPatch, "/api/drivers/availability", rider, http.StatusForbidden},
		{"notifications", http.MethodGet, "/api/notifications", rider, http.StatusOK},
		{"websocket disabled", http.MethodGet, "/ws", rider, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}
