package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"nepway/internal/apperrors"
	"nepway/internal/config"
	"nepway/internal/models"
	"nepway/internal/repositories/memory"
	"nepway/pkg/cache"
	"nepway/pkg/events"
	"nepway/pkg/logger"
	"nepway/pkg/scheduler"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var testStart = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(eventType events.Type) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type testEnv struct {
	clock       *scheduler.FakeClock
	scheduler   *scheduler.Scheduler
	cache       *cache.MemoryCache
	lifecycle   *config.LifecycleConfig
	rides       *memory.RideRepository
	requests    *memory.RideRequestRepository
	notes       *memory.NotificationRepository
	publisher   *recordingPublisher
	emitter     *EventEmitter
	notifier    NotificationService
	transitions *StatusTransitioner
	progression *AutoProgression
	rideSvc     RideService
	requestSvc  RideRequestService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewDiscard()

	env := &testEnv{
		clock:     scheduler.NewFakeClock(testStart),
		rides:     memory.NewRideRepository(),
		requests:  memory.NewRideRequestRepository(),
		notes:     memory.NewNotificationRepository(),
		publisher: &recordingPublisher{},
		lifecycle: &config.LifecycleConfig{
			AutoProgression:   true,
			ProgressionDelay:  10 * time.Second,
			AssignOffset:      2 * time.Second,
			ArriveOffset:      5 * time.Second,
			StartOffset:       8 * time.Second,
			CompletionPerKm:   time.Second,
			DefaultDistanceKm: 5,
			SweepInterval:     5 * time.Minute,
		},
	}
	env.cache = cache.NewMemoryCache(env.clock.Now)
	env.scheduler = scheduler.New(env.clock, log, 0)
	env.emitter = NewEventEmitter(env.publisher, env.clock, time.Second, log)
	env.notifier = NewNotificationService(env.notes, nil, nil, "user_", env.clock, log)
	env.transitions = NewStatusTransitioner(env.rides, env.requests, env.notifier, env.emitter, env.clock, log)
	env.progression = NewAutoProgression(env.lifecycle, env.scheduler, env.cache, env.rides, env.transitions, log)
	env.rideSvc = NewRideService(env.rides, env.transitions, env.progression, env.notifier, env.emitter, env.clock, log)
	env.requestSvc = NewRideRequestService(env.requests, env.rides, env.progression, env.notifier, env.emitter, env.clock, log)
	return env
}

// settle waits for background notifications and events.
func (env *testEnv) settle() {
	env.notifier.Wait()
	env.emitter.Wait()
}

// advance moves the fake clock and runs whatever became due.
func (env *testEnv) advance(d time.Duration) {
	env.clock.Advance(d)
	env.scheduler.RunDue(context.Background())
}

func newDriver() models.Identity {
	return models.Identity{UserID: primitive.NewObjectID(), Role: models.UserRoleDriver}
}

func newRider() models.Identity {
	return models.Identity{UserID: primitive.NewObjectID(), Role: models.UserRoleRider}
}

func (env *testEnv) createRide(t *testing.T, driver models.Identity, seats int) *models.Ride {
	t.Helper()
	ride, err := env.rideSvc.CreateRide(context.Background(), driver, &models.CreateRideInput{
		From:           "Kathmandu",
		To:             "Bhaktapur",
		Date:           "2026-03-11",
		Time:           "08:00",
		AvailableSeats: seats,
		PricePerSeat:   250,
	})
	if err != nil {
		t.Fatalf("CreateRide() error = %v", err)
	}
	return ride
}

func (env *testEnv) createRequest(t *testing.T, passenger models.Identity, seats int) *models.RideRequest {
	t.Helper()
	request, err := env.requestSvc.CreateRequest(context.Background(), passenger, &models.CreateRideRequestInput{
		From:            "Lalitpur",
		To:              "Kirtipur",
		FromCoordinates: models.Coordinates{Lat: 27.6588, Lng: 85.3247},
		ToCoordinates:   models.Coordinates{Lat: 27.6781, Lng: 85.2790},
		PreferredDate:   "2026-03-11",
		PreferredTime:   "07:30",
		MaxPricePerSeat: 300,
		SeatsNeeded:     seats,
	})
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	return request
}

func (env *testEnv) ride(t *testing.T, id primitive.ObjectID) *models.Ride {
	t.Helper()
	ride, err := env.rides.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s) error = %v", id.Hex(), err)
	}
	return ride
}

func (env *testEnv) request(t *testing.T, id primitive.ObjectID) *models.RideRequest {
	t.Helper()
	request, err := env.requests.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s) error = %v", id.Hex(), err)
	}
	return request
}

func assertAppError(t *testing.T, err error, kind apperrors.Kind, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s/%s error, got nil", kind, code)
	}
	appErr := apperrors.From(err)
	if appErr.Kind != kind {
		t.Fatalf("error kind = %s, want %s (err: %v)", appErr.Kind, kind, err)
	}
	if code != "" && appErr.Code != code {
		t.Fatalf("error code = %s, want %s (err: %v)", appErr.Code, code, err)
	}
}
