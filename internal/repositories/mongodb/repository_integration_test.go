package mongodb

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"nepway/internal/models"
	"nepway/internal/repositories/interfaces"
	"nepway/pkg/cache"
	"nepway/pkg/database"
	"nepway/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// openTestDatabase connects to NEPWAY_TEST_MONGO_URI and returns a fresh
// database that is dropped when the test ends.
func openTestDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("NEPWAY_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("NEPWAY_TEST_MONGO_URI not set")
	}

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            uri,
		Database:       "nepway_test_" + primitive.NewObjectID().Hex(),
		MaxPoolSize:    20,
		ConnectTimeout: 5 * time.Second,
		SocketTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewMongoDB() error = %v", err)
	}
	if err := database.NewMigrator(db.Database, logger.NewDiscard()).Up(context.Background()); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Database.Drop(context.Background())
		_ = db.Close()
	})
	return db.Database
}

func seedRide(t *testing.T, repo interfaces.RideRepository, driverID primitive.ObjectID, seats int, date, clock string) *models.Ride {
	t.Helper()
	now := time.Now().UTC()
	ride := &models.Ride{
		DriverID:       driverID,
		From:           "Kathmandu",
		To:             "Chitwan",
		Date:           date,
		Time:           clock,
		AvailableSeats: seats,
		PricePerSeat:   1200,
		Status:         models.RideStatusActive,
		PaymentMethod:  models.PaymentMethodCash,
		PaymentStatus:  models.PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.Create(context.Background(), ride); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return ride
}

func TestRideRepository_BookSeatIsAtomic(t *testing.T) {
	db := openTestDatabase(t)
	repo := NewRideRepository(db, nil)
	ride := seedRide(t, repo, primitive.NewObjectID(), 3, "2030-01-01", "09:00")

	const contenders = 20
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		mu      sync.Mutex
		booked  int
		refused int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := repo.BookSeat(context.Background(), ride.ID, primitive.NewObjectID())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case errors.Is(err, interfaces.ErrConditionFailed):
				refused++
			default:
				t.Errorf("BookSeat() unexpected error = %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if booked != 3 || refused != contenders-3 {
		t.Errorf("booked = %d, refused = %d, want 3 and %d", booked, refused, contenders-3)
	}
	stored, err := repo.GetByID(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(stored.Passengers) != 3 {
		t.Errorf("passengers = %d, want 3", len(stored.Passengers))
	}
}

func TestRideRepository_ConditionalWrites(t *testing.T) {
	db := openTestDatabase(t)
	repo := NewRideRepository(db, cache.NewMemoryCache(time.Now))
	driverID := primitive.NewObjectID()
	passengerID := primitive.NewObjectID()
	ride := seedRide(t, repo, driverID, 4, "2030-01-01", "09:00")
	ctx := context.Background()

	t.Run("driver cannot book own ride", func(t *testing.T) {
		if _, err := repo.BookSeat(ctx, ride.ID, driverID); !errors.Is(err, interfaces.ErrConditionFailed) {
			t.Errorf("err = %v, want ErrConditionFailed", err)
		}
	})

	t.Run("add and remove seats", func(t *testing.T) {
		updated, err := repo.AddPassengerSeats(ctx, ride.ID, driverID, passengerID, 3)
		if err != nil {
			t.Fatalf("AddPassengerSeats() error = %v", err)
		}
		if len(updated.Passengers) != 3 {
			t.Fatalf("passengers = %d, want 3", len(updated.Passengers))
		}
		if _, err := repo.AddPassengerSeats(ctx, ride.ID, driverID, primitive.NewObjectID(), 2); !errors.Is(err, interfaces.ErrConditionFailed) {
			t.Errorf("overbook err = %v, want ErrConditionFailed", err)
		}
		updated, err = repo.RemovePassengerSeats(ctx, ride.ID, passengerID, 3)
		if err != nil {
			t.Fatalf("RemovePassengerSeats() error = %v", err)
		}
		if len(updated.Passengers) != 0 {
			t.Errorf("passengers = %d, want 0", len(updated.Passengers))
		}
	})

	t.Run("transition guards on the source status", func(t *testing.T) {
		at := time.Now().UTC()
		updated, err := repo.TransitionStatus(ctx, ride.ID, interfaces.StatusChange{
			From:         models.RideStatusActive,
			To:           models.RideStatusCancelled,
			TimestampKey: "cancelled_at",
			At:           at,
		})
		if err != nil {
			t.Fatalf("TransitionStatus() error = %v", err)
		}
		if updated.Status != models.RideStatusCancelled || updated.CancelledAt == nil {
			t.Errorf("ride = %+v", updated)
		}
		_, err = repo.TransitionStatus(ctx, ride.ID, interfaces.StatusChange{
			From: models.RideStatusActive,
			To:   models.RideStatusDriverAssigned,
			At:   at,
		})
		if !errors.Is(err, interfaces.ErrConditionFailed) {
			t.Errorf("second transition err = %v, want ErrConditionFailed", err)
		}
	})

	t.Run("missing ride", func(t *testing.T) {
		if _, err := repo.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, interfaces.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestRideRepository_ExpireStale(t *testing.T) {
	db := openTestDatabase(t)
	repo := NewRideRepository(db, nil)
	driverID := primitive.NewObjectID()
	ctx := context.Background()

	yesterday := seedRide(t, repo, driverID, 2, "2026-03-09", "18:00")
	earlierToday := seedRide(t, repo, driverID, 2, "2026-03-10", "08:59")
	laterToday := seedRide(t, repo, driverID, 2, "2026-03-10", "09:01")

	expired, err := repo.ExpireStale(ctx, "2026-03-10", "09:00", time.Now().UTC())
	if err != nil {
		t.Fatalf("ExpireStale() error = %v", err)
	}
	if expired != 2 {
		t.Errorf("expired = %d, want 2", expired)
	}

	for _, tc := range []struct {
		ride *models.Ride
		want models.RideStatus
	}{
		{yesterday, models.RideStatusExpired},
		{earlierToday, models.RideStatusExpired},
		{laterToday, models.RideStatusActive},
	} {
		stored, err := repo.GetByID(ctx, tc.ride.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if stored.Status != tc.want {
			t.Errorf("%s %s status = %s, want %s", stored.Date, stored.Time, stored.Status, tc.want)
		}
	}
}

func TestRideRequestRepository_ClaimLifecycle(t *testing.T) {
	db := openTestDatabase(t)
	repo := NewRideRequestRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	request := &models.RideRequest{
		PassengerID:   primitive.NewObjectID(),
		From:          "Butwal",
		To:            "Lumbini",
		PreferredDate: "2030-01-01",
		PreferredTime: "07:00",
		SeatsNeeded:   1,
		Status:        models.RideRequestStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.Create(ctx, request); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	first, second := primitive.NewObjectID(), primitive.NewObjectID()
	if _, err := repo.Claim(ctx, request.ID, first, now); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if _, err := repo.Claim(ctx, request.ID, second, now); !errors.Is(err, interfaces.ErrConditionFailed) {
		t.Fatalf("second Claim() err = %v, want ErrConditionFailed", err)
	}

	released, err := repo.ReleaseClaim(ctx, request.ID, first)
	if err != nil {
		t.Fatalf("ReleaseClaim() error = %v", err)
	}
	if released.Status != models.RideRequestStatusPending || released.AcceptedBy != nil {
		t.Errorf("released = %+v", released)
	}

	if _, err := repo.Claim(ctx, request.ID, second, now); err != nil {
		t.Fatalf("reclaim error = %v", err)
	}
	rideID := primitive.NewObjectID()
	attached, err := repo.AttachRide(ctx, request.ID, second, rideID)
	if err != nil {
		t.Fatalf("AttachRide() error = %v", err)
	}
	if attached.AcceptedRide == nil || *attached.AcceptedRide != rideID {
		t.Errorf("accepted ride = %v, want %s", attached.AcceptedRide, rideID.Hex())
	}
	if _, err := repo.ReleaseClaim(ctx, request.ID, second); !errors.Is(err, interfaces.ErrConditionFailed) {
		t.Errorf("release after attach err = %v, want ErrConditionFailed", err)
	}

	completed, err := repo.CompleteForRide(ctx, rideID)
	if err != nil {
		t.Fatalf("CompleteForRide() error = %v", err)
	}
	if completed != 1 {
		t.Errorf("completed = %d, want 1", completed)
	}
}

func TestDriverAvailabilityRepository_Upsert(t *testing.T) {
	db := openTestDatabase(t)
	repo := NewDriverAvailabilityRepository(db)
	ctx := context.Background()
	driverID := primitive.NewObjectID()

	if _, err := repo.Get(ctx, driverID); !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}

	at := time.Now().UTC().Truncate(time.Millisecond)
	got, err := repo.Upsert(ctx, &models.DriverAvailability{
		DriverID:        driverID,
		IsAvailable:     true,
		LastActive:      &at,
		CurrentLocation: &models.DriverLocation{Lat: 27.7172, Lng: 85.324, LastUpdated: at},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !got.IsAvailable || got.CurrentLocation == nil {
		t.Fatalf("Upsert() = %+v, want available with location", got)
	}

	later := at.Add(time.Minute)
	got, err = repo.Upsert(ctx, &models.DriverAvailability{DriverID: driverID, LastActive: &later})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if got.IsAvailable {
		t.Error("IsAvailable = true, want false")
	}
	if got.CurrentLocation == nil || got.CurrentLocation.Lat != 27.7172 {
		t.Errorf("CurrentLocation = %+v, want the earlier position kept", got.CurrentLocation)
	}
	if got.LastActive == nil || !got.LastActive.Equal(later) {
		t.Errorf("LastActive = %v, want %v", got.LastActive, later)
	}
}
