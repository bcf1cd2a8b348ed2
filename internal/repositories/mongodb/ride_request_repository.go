package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nepway/internal/models"
	"nepway/internal/repositories/interfaces"
	"nepway/internal/utils"
	"nepway/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type rideRequestRepository struct {
	collection *mongo.Collection
}

func NewRideRequestRepository(db *mongo.Database) interfaces.RideRequestRepository {
	return &rideRequestRepository{
		collection: db.Collection(database.CollectionRideRequests),
	}
}

func (r *rideRequestRepository) Create(ctx context.Context, request *models.RideRequest) error {
	if request.ID.IsZero() {
		request.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, request); err != nil {
		return fmt.Errorf("failed to create ride request: %w", err)
	}

	return nil
}

func (r *rideRequestRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.RideRequest, error) {
	var request models.RideRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ride request: %w", err)
	}

	return &request, nil
}

func (r *rideRequestRepository) ListPending(ctx context.Context, params *utils.PaginationParams) ([]*models.RideRequest, int64, error) {
	filter := bson.M{"status": models.RideRequestStatusPending}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count ride requests: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(params.GetSkip())).
		SetLimit(int64(params.GetLimit()))

	requests, err := r.findRequests(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *rideRequestRepository) ListByPassenger(ctx context.Context, passengerID primitive.ObjectID) ([]*models.RideRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.findRequests(ctx, bson.M{"passenger": passengerID}, opts)
}

// Claim moves a pending request to accepted for driverID. At most one
// concurrent caller can match the pending filter.
func (r *rideRequestRepository) Claim(ctx context.Context, requestID, driverID primitive.ObjectID, at time.Time) (*models.RideRequest, error) {
	filter := bson.M{
		"_id":       requestID,
		"status":    models.RideRequestStatusPending,
		"passenger": bson.M{"$ne": driverID},
	}
	update := bson.M{"$set": bson.M{
		"status":      models.RideRequestStatusAccepted,
		"accepted_by": driverID,
		"accepted_at": at,
		"updated_at":  at,
	}}

	return r.findOneAndUpdate(ctx, filter, update, "claim ride request")
}

// ReleaseClaim undoes Claim. It only matches a claim held by driverID that
// has not been attached to a ride yet.
func (r *rideRequestRepository) ReleaseClaim(ctx context.Context, requestID, driverID primitive.ObjectID) (*models.RideRequest, error) {
	filter := bson.M{
		"_id":           requestID,
		"status":        models.RideRequestStatusAccepted,
		"accepted_by":   driverID,
		"accepted_ride": bson.M{"$exists": false},
	}
	update := bson.M{
		"$set":   bson.M{"status": models.RideRequestStatusPending, "updated_at": time.Now()},
		"$unset": bson.M{"accepted_by": "", "accepted_at": ""},
	}

	return r.findOneAndUpdate(ctx, filter, update, "release ride request")
}

func (r *rideRequestRepository) AttachRide(ctx context.Context, requestID, driverID, rideID primitive.ObjectID) (*models.RideRequest, error) {
	filter := bson.M{
		"_id":         requestID,
		"status":      models.RideRequestStatusAccepted,
		"accepted_by": driverID,
	}
	update := bson.M{"$set": bson.M{"accepted_ride": rideID, "updated_at": time.Now()}}

	return r.findOneAndUpdate(ctx, filter, update, "attach ride")
}

func (r *rideRequestRepository) Cancel(ctx context.Context, requestID, passengerID primitive.ObjectID) (*models.RideRequest, error) {
	filter := bson.M{
		"_id":       requestID,
		"passenger": passengerID,
		"status":    models.RideRequestStatusPending,
	}
	update := bson.M{"$set": bson.M{"status": models.RideRequestStatusCancelled, "updated_at": time.Now()}}

	return r.findOneAndUpdate(ctx, filter, update, "cancel ride request")
}

func (r *rideRequestRepository) CompleteForRide(ctx context.Context, rideID primitive.ObjectID) (int64, error) {
	filter := bson.M{
		"accepted_ride": rideID,
		"status":        models.RideRequestStatusAccepted,
	}
	update := bson.M{"$set": bson.M{"status": models.RideRequestStatusCompleted, "updated_at": time.Now()}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to complete ride requests: %w", err)
	}

	return result.ModifiedCount, nil
}

func (r *rideRequestRepository) ExpireStale(ctx context.Context, today, now string, at time.Time) (int64, error) {
	filter := bson.M{
		"status": models.RideRequestStatusPending,
		"$or": bson.A{
			bson.M{"preferred_date": bson.M{"$lt": today}},
			bson.M{"preferred_date": today, "preferred_time": bson.M{"$lt": now}},
		},
	}
	update := bson.M{"$set": bson.M{"status": models.RideRequestStatusExpired, "updated_at": at}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to expire ride requests: %w", err)
	}

	return result.ModifiedCount, nil
}

func (r *rideRequestRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M, op string) (*models.RideRequest, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var request models.RideRequest
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrConditionFailed
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	return &request, nil
}

func (r *rideRequestRepository) findRequests(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.RideRequest, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find ride requests: %w", err)
	}
	defer cursor.Close(ctx)

	requests := make([]*models.RideRequest, 0)
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode ride requests: %w", err)
	}

	return requests, nil
}
