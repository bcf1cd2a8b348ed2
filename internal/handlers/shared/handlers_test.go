package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nepway/internal/apperrors"
	"nepway/internal/config"
	"nepway/internal/middleware"
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

const testSecret = "handler-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router   *gin.Engine
	rides    *memory.RideRepository
	notifier services.NotificationService
	emitter  *services.EventEmitter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewDiscard()
	clock := scheduler.NewFakeClock(time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC))
	sched := scheduler.New(clock, log, 0)

	rides := memory.NewRideRepository()
	requests := memory.NewRideRequestRepository()
	emitter := services.NewEventEmitter(events.NopPublisher{}, clock, time.Second, log)
	notifier := services.NewNotificationService(memory.NewNotificationRepository(), nil, nil, "user_", clock, log)
	transitions := services.NewStatusTransitioner(rides, requests, notifier, emitter, clock, log)
	progression := services.NewAutoProgression(&config.LifecycleConfig{}, sched, cache.NewMemoryCache(clock.Now), rides, transitions, log)

	rideHandler := NewRideHandler(services.NewRideService(rides, transitions, progression, notifier, emitter, clock, log))
	requestHandler := NewRideRequestHandler(services.NewRideRequestService(requests, rides, progression, notifier, emitter, clock, log))
	driverHandler := NewDriverHandler(services.NewDriverService(rides, memory.NewDriverAvailabilityRepository(), clock, time.UTC))
	notificationHandler := NewNotificationHandler(notifier)

	router := gin.New()
	router.GET("/api/fares/estimate", NewFareHandler().Estimate)
	router.GET("/api/rides", rideHandler.ListActiveRides)

	api := router.Group("/api", middleware.AuthRequired(testSecret))
	api.POST("/rides", middleware.DriverRequired(), rideHandler.CreateRide)
	api.GET("/rides/my-rides", rideHandler.GetMyRides)
	api.POST("/rides/:id/book", rideHandler.BookSeat)
	api.PATCH("/rides/:id/cancel", rideHandler.CancelRide)
	api.GET("/rides/:id/status", rideHandler.GetRideStatus)
	api.PATCH("/rides/:id/status", rideHandler.UpdateRideStatus)
	api.POST("/ride-requests", requestHandler.CreateRequest)
	api.GET("/ride-requests", requestHandler.ListPendingRequests)
	api.GET("/ride-requests/my-requests", requestHandler.GetMyRequests)
	api.POST("/ride-requests/:id/accept", middleware.DriverRequired(), requestHandler.AcceptRequest)
	api.PATCH("/ride-requests/:id/cancel", requestHandler.CancelRequest)
	api.GET("/drivers/stats", middleware.DriverRequired(), driverHandler.GetStats)
	api.GET("/drivers/availability", middleware.DriverRequired(), driverHandler.GetAvailability)
	api.PATCH("/drivers/availability", middleware.DriverRequired(), driverHandler.UpdateAvailability)
	api.GET("/notifications", notificationHandler.ListNotifications)

	return &testServer{router: router, rides: rides, notifier: notifier, emitter: emitter}
}

type apiEnvelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *utils.APIError `json:"error"`
	Meta   *utils.Meta     `json:"meta"`
}

type caller struct {
	id    primitive.ObjectID
	token string
}

func newCaller(t *testing.T, role models.UserRole) caller {
	t.Helper()
	id := primitive.NewObjectID()
	token, err := utils.GenerateAccessToken(id, string(role), "nepway-test", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return caller{id: id, token: token}
}

func (s *testServer) do(t *testing.T, who *caller, method, path string, body interface{}) (int, apiEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if who != nil {
		req.Header.Set("Authorization", "Bearer "+who.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var envelope apiEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, envelope
}

func decodeData(t *testing.T, envelope apiEnvelope, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("decode data %s: %v", envelope.Data, err)
	}
}

func (s *testServer) createRide(t *testing.T, driver *caller, seats int) models.Ride {
	t.Helper()
	code, envelope := s.do(t, driver, http.MethodPost, "/api/rides", map[string]interface{}{
		"from":            "Pokhara",
		"to":              "Kathmandu",
		"date":            "2026-03-11",
		"time":            "07:15",
		"available_seats": seats,
		"price_per_seat":  900,
	})
	if code != http.StatusCreated {
		t.Fatalf("create ride status = %d, error = %+v", code, envelope.Error)
	}
	var ride models.Ride
	decodeData(t, envelope, &ride)
	return ride
}

func expectError(t *testing.T, code int, envelope apiEnvelope, wantStatus int, wantCode string) {
	t.Helper()
	if code != wantStatus {
		t.Fatalf("status = %d, want %d (error %+v)", code, wantStatus, envelope.Error)
	}
	if envelope.Error == nil || envelope.Error.Code != wantCode {
		t.Fatalf("error = %+v, want code %s", envelope.Error, wantCode)
	}
}

func TestRideHandler_CreateRide(t *testing.T) {
	s := newTestServer(t)
	driver := newCaller(t, models.UserRoleDriver)
	rider := newCaller(t, models.UserRoleRider)

	t.Run("driver creates an active ride", func(t *testing.T) {
		ride := s.createRide(t, &driver, 3)
		if ride.Status != models.RideStatusActive || ride.DriverID != driver.id {
			t.Errorf("ride = %+v", ride)
		}
	})

	t.Run("riders are rejected", func(t *testing.T) {
		code, _ := s.do(t, &rider, http.MethodPost, "/api/rides", map[string]interface{}{"from": "A"})
		if code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", code)
		}
	})

	t.Run("validation errors carry field details", func(t *testing.T) {
		code, envelope := s.do(t, &driver, http.MethodPost, "/api/rides", map[string]interface{}{
			"from":            "Pokhara",
			"date":            "11-03-2026",
			"time":            "07:15",
			"available_seats": 3,
		})
		expectError(t, code, envelope, http.StatusBadRequest, apperrors.CodeValidation)
		if _, ok := envelope.Error.Details["Date"]; !ok {
			t.Errorf("details = %v, want Date", envelope.Error.Details)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		code, _ := s.do(t, &driver, http.MethodPost, "/api/rides", "not an object")
		if code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", code)
		}
	})
}

func TestRideHandler_BookSeat(t *testing.T) {
	s := newTestServer(t)
	driver := newCaller(t, models.UserRoleDriver)
	rider := newCaller(t, models.UserRoleRider)
	other := newCaller(t, models.UserRoleRider)
	ride := s.createRide(t, &driver, 1)
	path := "/api/rides/" + ride.ID.Hex() + "/book"

	code, envelope := s.do(t, &rider, http.MethodPost, path, nil)
	if code != http.StatusOK {
		t.Fatalf("book status = %d, error = %+v", code, envelope.Error)
	}
	var booked models.Ride
	decodeData(t, envelope, &booked)
	if !booked.HasPassenger(rider.id) {
		t.Errorf("passengers = %v, want %s", booked.Passengers, rider.id.Hex())
	}

	tests := []struct {
		name       string
		who        *caller
		path       string
		wantStatus int
		wantCode   string
	}{
		{"same rider twice", &rider, path, http.StatusConflict, apperrors.CodeAlreadyBooked},
		{"ride full", &other, path, http.StatusConflict, apperrors.CodeRideFull},
		{"own ride", &driver, path, http.StatusForbidden, apperrors.CodeOwnRide},
		{"unknown ride", &rider, "/api/rides/" + primitive.NewObjectID().Hex() + "/book", http.StatusNotFound, apperrors.CodeRideNotFound},
		{"bad id", &rider, "/api/rides/nope/book", http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, envelope := s.do(t, tt.who, http.MethodPost, tt.path, nil)
			expectError(t, code, envelope, tt.wantStatus, tt.wantCode)
		})
	}

	s.notifier.Wait()
	s.emitter.Wait()
}

func TestRideHandler_ListActiveRides(t *testing.T) {
	s := newTestServer(t)
	driver := newCaller(t, models.UserRoleDriver)
	for i := 0; i < 3; i++ {
		s.createRide(t, &driver, 2)
	}

	// Listing needs no token.
	code, envelope := s.do(t, nil, http.MethodGet, "/api/rides?page=1&page_size=2", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var rides []models.Ride
	decodeData(t, envelope, &rides)
	if len(rides) != 2 {
		t.Errorf("len(rides) = %d, want 2", len(rides))
	}
	if envelope.Meta == nil || envelope.Meta.Pagination == nil || envelope.Meta.Pagination.Total != 3 {
		t.Errorf("meta = %+v, want total 3", envelope.Meta)
	}
}

func TestRideHandler_UpdateRideStatus(t *testing.T) {
	s := newTestServer(t)
	driver := newCaller(t, models.UserRoleDriver)
	stranger := newCaller(t, models.UserRoleDriver)
	ride := s.createRide(t, &driver, 2)
	path := "/api/rides/" + ride.ID.Hex() + "/status"

	tests := []struct {
		name       string
		who        *caller
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"missing status", &driver, map[string]string{}, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown status", &driver, map[string]string{"status": "teleported"}, http.StatusBadRequest, apperrors.CodeInvalidStatus},
		{"expired is set by the sweeper only", &driver, map[string]string{"status": "expired"}, http.StatusBadRequest, apperrors.CodeInvalidStatus},
		{"skipping ahead", &driver, map[string]string{"status": "ride_started"}, http.StatusConflict, apperrors.CodeIllegalTransition},
		{"not the owner", &stranger, map[string]string{"status": "driver_assigned"}, http.StatusForbidden, apperrors.CodeNotRideOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, envelope := s.do(t, tt.who, http.MethodPatch, path, tt.body)
			expectError(t, code, envelope, tt.wantStatus, tt.wantCode)
		})
	}

	t.Run("owner assigns", func(t *testing.T) {
		code, envelope := s.do(t, &driver, http.MethodPatch, path, map[string]string{"status": "driver_assigned"})
		if code != http.StatusOK {
			t.Fatalf("status = %d, error = %+v", code, envelope.Error)
		}
		var view models.RideStatusView
		decodeData(t, envelope, &view)
		if view.Status != models.RideStatusDriverAssigned {
			t.Errorf("status = %s, want driver_assigned", view.Status)
		}
	})

	t.Run("anyone can read the status", func(t *testing.T) {
		rider := newCaller(t, models.UserRoleRider)
		code, envelope := s.do(t, &rider, http.MethodGet, path, nil)
		if code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		var view models.RideStatusView
		decodeData(t, envelope, &view)
		if view.Status != models.RideStatusDriverAssigned {
			t.Errorf("status = %s, want driver_assigned", view.Status)
		}
	})

	s.notifier.Wait()
	s.emitter.Wait()
}

func TestRideRequestHandler_Flow(t *testing.T) {
	s := newTestServer(t)
	driver := newCaller(t, models.UserRoleDriver)
	rider := newCaller(t, models.UserRoleRider)

	code, envelope := s.do(t, &rider, http.MethodPost, "/api/ride-requests", map[string]interface{}{
		"from":               "Bhaktapur",
		"to":                 "Patan",
		"from_coordinates":   map[string]float64{"lat": 27.671, "lng": 85.4298},
		"to_coordinates":     map[string]float64{"lat": 27.6766, "lng": 85.3165},
		"preferred_date":     "2026-03-11",
		"preferred_time":     "10:00",
		"max_price_per_seat": 400,
		"seats_needed":       2,
	})
	if code != http.StatusCreated {
		t.Fatalf("create request status = %d, error = %+v", code, envelope.Error)
	}
	var request models.RideRequest
	decodeData(t, envelope, &request)

	t.Run("riders cannot accept", func(t *testing.T) {
		code, _ := s.do(t, &rider, http.MethodPost, "/api/ride-requests/"+request.ID.Hex()+"/accept", nil)
		if code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", code)
		}
	})

	t.Run("malformed ride id", func(t *testing.T) {
		code, envelope := s.do(t, &driver, http.MethodPost, "/api/ride-requests/"+request.ID.Hex()+"/accept", map[string]string{"ride_id": "xyz"})
		expectError(t, code, envelope, http.StatusBadRequest, apperrors.CodeValidation)
	})

	t.Run("unknown ride id releases the claim", func(t *testing.T) {
		body := map[string]string{"ride_id": primitive.NewObjectID().Hex()}
		code, envelope := s.do(t, &driver, http.MethodPost, "/api/ride-requests/"+request.ID.Hex()+"/accept", body)
		expectError(t, code, envelope, http.StatusNotFound, apperrors.CodeRideNotFound)
	})

	t.Run("accept without a body creates a ride", func(t *testing.T) {
		code, envelope := s.do(t, &driver, http.MethodPost, "/api/ride-requests/"+request.ID.Hex()+"/accept", nil)
		if code != http.StatusOK {
			t.Fatalf("accept status = %d, error = %+v", code, envelope.Error)
		}
		var result models.AcceptResult
		decodeData(t, envelope, &result)
		if !result.RideCreated || result.Ride == nil {
			t.Fatalf("result = %+v, want a new ride", result)
		}
		if result.Request.Status != models.RideRequestStatusAccepted {
			t.Errorf("request status = %s, want accepted", result.Request.Status)
		}
		if result.Ride.AvailableSeats != 5 {
			t.Errorf("available seats = %d, want 5", result.Ride.AvailableSeats)
		}
	})

	t.Run("second accept conflicts", func(t *testing.T) {
		other := newCaller(t, models.UserRoleDriver)
		code, envelope := s.do(t, &other, http.MethodPost, "/api/ride-requests/"+request.ID.Hex()+"/accept", nil)
		expectError(t, code, envelope, http.StatusConflict, apperrors.CodeRequestUnavailable)
	})

	t.Run("accepted requests cannot be cancelled", func(t *testing.T) {
		code, envelope := s.do(t, &rider, http.MethodPatch, "/api/ride-requests/"+request.ID.Hex()+"/cancel", nil)
		expectError(t, code, envelope, http.StatusConflict, apperrors.CodeRequestUnavailable)
	})

	t.Run("my requests", func(t *testing.T) {
		code, envelope := s.do(t, &rider, http.MethodGet, "/api/ride-requests/my-requests", nil)
		if code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if envelope.Meta == nil || envelope.Meta.Count != 1 {
			t.Errorf("meta = %+v, want count 1", envelope.Meta)
		}
	})

	s.notifier.Wait()
	s.emitter.Wait()

	t.Run("notifications reach the passenger", func(t *testing.T) {
		code, envelope := s.do(t, &rider, http.MethodGet, "/api/notifications?limit=10", nil)
		if code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		var notes []models.Notification
		decodeData(t, envelope, &notes)
		if len(notes) == 0 {
			t.Error("expected at least one notification")
		}
	})
}

func TestDriverHandler_GetStats(t *testing.T) {
	s := newTestServer(t)
	driver := newCaller(t, models.UserRoleDriver)
	s.createRide(t, &driver, 2)

	code, envelope := s.do(t, &driver, http.MethodGet, "/api/drivers/stats", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d, error = %+v", code, envelope.Error)
	}
	var stats models.DriverStats
	decodeData(t, envelope, &stats)
	if stats.TotalRides != 0 || stats.ActiveRides != 1 {
		t.Errorf("stats = %+v, want no completed rides and 1 active", stats)
	}

	rider := newCaller(t, models.UserRoleRider)
	if code, _ := s.do(t, &rider, http.MethodGet, "/api/drivers/stats", nil); code != http.StatusForbidden {
		t.Errorf("rider status = %d, want 403", code)
	}
}

func TestDriverHandler_Availability(t *testing.T) {
	s := newTestServer(t)
	driver := newCaller(t, models.UserRoleDriver)

	code, envelope := s.do(t, &driver, http.MethodGet, "/api/drivers/availability", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d, error = %+v", code, envelope.Error)
	}
	var availability models.DriverAvailability
	decodeData(t, envelope, &availability)
	if availability.IsAvailable {
		t.Error("new driver is available, want unavailable")
	}

	code, envelope = s.do(t, &driver, http.MethodPatch, "/api/drivers/availability", map[string]interface{}{
		"is_available": true,
		"location":     map[string]float64{"lat": 27.7172, "lng": 85.324},
	})
	if code != http.StatusOK {
		t.Fatalf("PATCH status = %d, error = %+v", code, envelope.Error)
	}
	decodeData(t, envelope, &availability)
	if !availability.IsAvailable || availability.CurrentLocation == nil || availability.LastActive == nil {
		t.Errorf("availability = %+v, want available with location and last active", availability)
	}

	code, envelope = s.do(t, &driver, http.MethodPatch, "/api/drivers/availability", map[string]interface{}{})
	expectError(t, code, envelope, http.StatusBadRequest, apperrors.CodeValidation)

	rider := newCaller(t, models.UserRoleRider)
	if code, _ := s.do(t, &rider, http.MethodPatch, "/api/drivers/availability", map[string]bool{"is_available": true}); code != http.StatusForbidden {
		t.Errorf("rider status = %d, want 403", code)
	}
}

func TestFareHandler_Estimate(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"valid", "fromLat=27.7172&fromLng=85.3240&toLat=28.2096&toLng=83.9856", http.StatusOK},
		{"missing destination", "fromLat=27.7172&fromLng=85.3240", http.StatusBadRequest},
		{"out of range", "fromLat=127&fromLng=85.3240&toLat=28.2&toLng=83.9", http.StatusBadRequest},
		{"not a number", "fromLat=north&fromLng=85&toLat=28&toLng=83", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, envelope := s.do(t, nil, http.MethodGet, "/api/fares/estimate?"+tt.query, nil)
			if code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", code, tt.wantStatus)
			}
			if code != http.StatusOK {
				return
			}
			var estimate models.FareEstimate
			decodeData(t, envelope, &estimate)
			if estimate.DistanceKm <= 0 || estimate.Fare != services.Fare(estimate.DistanceKm) {
				t.Errorf("estimate = %+v", estimate)
			}
		})
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthHandler_Check(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantStatus int
	}{
		{"all up", map[string]Pinger{"mongodb": stubPinger{}, "redis": stubPinger{}}, http.StatusOK},
		{"redis down", map[string]Pinger{"mongodb": stubPinger{}, "redis": stubPinger{err: errors.New("refused")}}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/health", NewHealthHandler("test", tt.checks).Check)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
