package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nepway/internal/models"
	"nepway/internal/repositories/interfaces"
	"nepway/internal/utils"
	"nepway/pkg/cache"
	"nepway/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	rideCacheTTL          = 30 * time.Minute
	removeSeatsMaxAttempt = 3
)

type rideRepository struct {
	collection *mongo.Collection
	cache      cache.Cache
}

// NewRideRepository returns the MongoDB ride store. cache may be nil; when
// set, rides in a terminal status are cached since they never change again.
func NewRideRepository(db *mongo.Database, c cache.Cache) interfaces.RideRepository {
	return &rideRepository{
		collection: db.Collection(database.CollectionRides),
		cache:      c,
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	if ride.ID.IsZero() {
		ride.ID = primitive.NewObjectID()
	}
	if ride.Passengers == nil {
		ride.Passengers = []primitive.ObjectID{}
	}

	if _, err := r.collection.InsertOne(ctx, ride); err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	if ride := r.getRideFromCache(ctx, id); ride != nil {
		return ride, nil
	}

	var ride models.Ride
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ride)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	r.cacheIfTerminal(ctx, &ride)

	return &ride, nil
}

func (r *rideRepository) ListByStatus(ctx context.Context, status models.RideStatus, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	filter := bson.M{"status": status}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}).
		SetSkip(int64(params.GetSkip())).
		SetLimit(int64(params.GetLimit()))

	rides, err := r.findRides(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}

	return rides, total, nil
}

func (r *rideRepository) ListByDriver(ctx context.Context, driverID primitive.ObjectID) ([]*models.Ride, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "time", Value: -1}})
	return r.findRides(ctx, bson.M{"driver": driverID}, opts)
}

func (r *rideRepository) ListByPassenger(ctx context.Context, passengerID primitive.ObjectID) ([]*models.Ride, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "time", Value: -1}})
	return r.findRides(ctx, bson.M{"passengers": passengerID}, opts)
}

// BookSeat appends userID in a single conditional update. Every booking
// precondition is part of the filter so concurrent bookers are serialised
// by the server.
func (r *rideRepository) BookSeat(ctx context.Context, rideID, userID primitive.ObjectID) (*models.Ride, error) {
	filter := bson.M{
		"_id":        rideID,
		"status":     models.RideStatusActive,
		"driver":     bson.M{"$ne": userID},
		"passengers": bson.M{"$ne": userID},
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$size": bson.M{"$ifNull": bson.A{"$passengers", bson.A{}}}},
			"$available_seats",
		}},
	}
	update := bson.M{
		"$push": bson.M{"passengers": userID},
		"$set":  bson.M{"updated_at": time.Now()},
	}

	return r.findOneAndUpdate(ctx, filter, update, "book seat")
}

func (r *rideRepository) AddPassengerSeats(ctx context.Context, rideID, driverID, passengerID primitive.ObjectID, seats int) (*models.Ride, error) {
	filter := bson.M{
		"_id":    rideID,
		"driver": driverID,
		"status": models.RideStatusActive,
		"$expr": bson.M{"$lte": bson.A{
			bson.M{"$add": bson.A{
				bson.M{"$size": bson.M{"$ifNull": bson.A{"$passengers", bson.A{}}}},
				seats,
			}},
			"$available_seats",
		}},
	}
	update := bson.M{
		"$push": bson.M{"passengers": bson.M{"$each": repeatID(passengerID, seats)}},
		"$set":  bson.M{"updated_at": time.Now()},
	}

	return r.findOneAndUpdate(ctx, filter, update, "add passenger seats")
}

// RemovePassengerSeats drops the last seats occurrences of passengerID. The
// write is conditioned on the passenger list it was computed from and
// retried when a concurrent booking changed it.
func (r *rideRepository) RemovePassengerSeats(ctx context.Context, rideID, passengerID primitive.ObjectID, seats int) (*models.Ride, error) {
	for attempt := 0; attempt < removeSeatsMaxAttempt; attempt++ {
		var ride models.Ride
		if err := r.collection.FindOne(ctx, bson.M{"_id": rideID}).Decode(&ride); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, interfaces.ErrNotFound
			}
			return nil, fmt.Errorf("failed to get ride: %w", err)
		}

		remaining := removeLastN(ride.Passengers, passengerID, seats)
		filter := bson.M{"_id": rideID, "passengers": ride.Passengers}
		update := bson.M{"$set": bson.M{"passengers": remaining, "updated_at": time.Now()}}

		updated, err := r.findOneAndUpdate(ctx, filter, update, "remove passenger seats")
		if errors.Is(err, interfaces.ErrConditionFailed) {
			continue
		}
		return updated, err
	}

	return nil, interfaces.ErrConditionFailed
}

func (r *rideRepository) TransitionStatus(ctx context.Context, rideID primitive.ObjectID, change interfaces.StatusChange) (*models.Ride, error) {
	set := bson.M{
		"status":     change.To,
		"updated_at": change.At,
	}
	if change.TimestampKey != "" {
		set[change.TimestampKey] = change.At
	}
	if change.PaymentStatus != "" {
		set["payment_status"] = change.PaymentStatus
	}
	if change.DistanceKm != nil {
		set["distance_km"] = *change.DistanceKm
	}
	if change.ActualFare != nil {
		set["actual_fare"] = *change.ActualFare
	}

	filter := bson.M{"_id": rideID, "status": change.From}
	ride, err := r.findOneAndUpdate(ctx, filter, bson.M{"$set": set}, "transition ride status")
	if err != nil {
		return nil, err
	}

	r.cacheIfTerminal(ctx, ride)

	return ride, nil
}

func (r *rideRepository) ExpireStale(ctx context.Context, today, now string, at time.Time) (int64, error) {
	filter := bson.M{
		"status": models.RideStatusActive,
		"$or": bson.A{
			bson.M{"date": bson.M{"$lt": today}},
			bson.M{"date": today, "time": bson.M{"$lt": now}},
		},
	}
	update := bson.M{"$set": bson.M{
		"status":     models.RideStatusExpired,
		"expired_at": at,
		"updated_at": at,
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to expire rides: %w", err)
	}

	return result.ModifiedCount, nil
}

func (r *rideRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M, op string) (*models.Ride, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ride models.Ride
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&ride)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrConditionFailed
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	return &ride, nil
}

func (r *rideRepository) findRides(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Ride, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find rides: %w", err)
	}
	defer cursor.Close(ctx)

	rides := make([]*models.Ride, 0)
	for cursor.Next(ctx) {
		var ride models.Ride
		if err := cursor.Decode(&ride); err != nil {
			return nil, fmt.Errorf("failed to decode ride: %w", err)
		}
		rides = append(rides, &ride)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return rides, nil
}

// Cache helper methods
func rideCacheKey(id primitive.ObjectID) string {
	return fmt.Sprintf("ride:%s", id.Hex())
}

func (r *rideRepository) cacheIfTerminal(ctx context.Context, ride *models.Ride) {
	if r.cache == nil || !ride.Status.Terminal() {
		return
	}
	_ = r.cache.Set(ctx, rideCacheKey(ride.ID), ride, rideCacheTTL)
}

func (r *rideRepository) getRideFromCache(ctx context.Context, id primitive.ObjectID) *models.Ride {
	if r.cache == nil {
		return nil
	}

	var ride models.Ride
	if err := r.cache.Get(ctx, rideCacheKey(id), &ride); err != nil {
		return nil
	}

	return &ride
}

func repeatID(id primitive.ObjectID, n int) []primitive.ObjectID {
	out := make([]primitive.ObjectID, n)
	for i := range out {
		out[i] = id
	}
	return out
}

func removeLastN(ids []primitive.ObjectID, target primitive.ObjectID, n int) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	for i := len(out) - 1; i >= 0 && n > 0; i-- {
		if out[i] == target {
			out = append(out[:i], out[i+1:]...)
			n--
		}
	}
	return out
}
