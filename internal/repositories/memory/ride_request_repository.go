package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"nepway/internal/models"
	"nepway/internal/repositories/interfaces"
	"nepway/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideRequestRepository struct {
	mu       sync.RWMutex
	requests map[primitive.ObjectID]*models.RideRequest

	// FailAttach, when set, is returned by AttachRide. Tests use it to fail
	// the last acceptance step.
	FailAttach error
}

var _ interfaces.RideRequestRepository = (*RideRequestRepository)(nil)

func NewRideRequestRepository() *RideRequestRepository {
	return &RideRequestRepository{requests: make(map[primitive.ObjectID]*models.RideRequest)}
}

func (r *RideRequestRepository) Create(_ context.Context, request *models.RideRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if request.ID.IsZero() {
		request.ID = primitive.NewObjectID()
	}
	r.requests[request.ID] = cloneRequest(request)
	return nil
}

func (r *RideRequestRepository) GetByID(_ context.Context, id primitive.ObjectID) (*models.RideRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	request, ok := r.requests[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return cloneRequest(request), nil
}

func (r *RideRequestRepository) ListPending(_ context.Context, params *utils.PaginationParams) ([]*models.RideRequest, int64, error) {
	matched := r.filter(func(req *models.RideRequest) bool { return req.Status == models.RideRequestStatusPending })
	return paginate(matched, params), int64(len(matched)), nil
}

func (r *RideRequestRepository) ListByPassenger(_ context.Context, passengerID primitive.ObjectID) ([]*models.RideRequest, error) {
	return r.filter(func(req *models.RideRequest) bool { return req.PassengerID == passengerID }), nil
}

func (r *RideRequestRepository) Claim(_ context.Context, requestID, driverID primitive.ObjectID, at time.Time) (*models.RideRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.requests[requestID]
	if !ok || request.Status != models.RideRequestStatusPending || request.PassengerID == driverID {
		return nil, interfaces.ErrConditionFailed
	}

	driver := driverID
	stamp := at
	request.Status = models.RideRequestStatusAccepted
	request.AcceptedBy = &driver
	request.AcceptedAt = &stamp
	request.UpdatedAt = at
	return cloneRequest(request), nil
}

func (r *RideRequestRepository) ReleaseClaim(_ context.Context, requestID, driverID primitive.ObjectID) (*models.RideRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.requests[requestID]
	if !ok ||
		request.Status != models.RideRequestStatusAccepted ||
		request.AcceptedBy == nil || *request.AcceptedBy != driverID ||
		request.AcceptedRide != nil {
		return nil, interfaces.ErrConditionFailed
	}

	request.Status = models.RideRequestStatusPending
	request.AcceptedBy = nil
	request.AcceptedAt = nil
	request.UpdatedAt = time.Now()
	return cloneRequest(request), nil
}

func (r *RideRequestRepository) AttachRide(_ context.Context, requestID, driverID, rideID primitive.ObjectID) (*models.RideRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailAttach != nil {
		return nil, r.FailAttach
	}

	request, ok := r.requests[requestID]
	if !ok ||
		request.Status != models.RideRequestStatusAccepted ||
		request.AcceptedBy == nil || *request.AcceptedBy != driverID {
		return nil, interfaces.ErrConditionFailed
	}

	ride := rideID
	request.AcceptedRide = &ride
	request.UpdatedAt = time.Now()
	return cloneRequest(request), nil
}

func (r *RideRequestRepository) Cancel(_ context.Context, requestID, passengerID primitive.ObjectID) (*models.RideRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.requests[requestID]
	if !ok || request.PassengerID != passengerID || request.Status != models.RideRequestStatusPending {
		return nil, interfaces.ErrConditionFailed
	}

	request.Status = models.RideRequestStatusCancelled
	request.UpdatedAt = time.Now()
	return cloneRequest(request), nil
}

func (r *RideRequestRepository) CompleteForRide(_ context.Context, rideID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var completed int64
	for _, request := range r.requests {
		if request.Status == models.RideRequestStatusAccepted && request.AcceptedRide != nil && *request.AcceptedRide == rideID {
			request.Status = models.RideRequestStatusCompleted
			request.UpdatedAt = time.Now()
			completed++
		}
	}
	return completed, nil
}

func (r *RideRequestRepository) ExpireStale(_ context.Context, today, now string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired int64
	for _, request := range r.requests {
		if request.Status != models.RideRequestStatusPending || !isStale(request.PreferredDate, request.PreferredTime, today, now) {
			continue
		}
		request.Status = models.RideRequestStatusExpired
		request.UpdatedAt = at
		expired++
	}
	return expired, nil
}

func (r *RideRequestRepository) filter(keep func(*models.RideRequest) bool) []*models.RideRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.RideRequest, 0)
	for _, request := range r.requests {
		if keep(request) {
			out = append(out, cloneRequest(request))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func cloneRequest(request *models.RideRequest) *models.RideRequest {
	cp := *request
	if request.AcceptedBy != nil {
		id := *request.AcceptedBy
		cp.AcceptedBy = &id
	}
	if request.AcceptedRide != nil {
		id := *request.AcceptedRide
		cp.AcceptedRide = &id
	}
	if request.AcceptedAt != nil {
		t := *request.AcceptedAt
		cp.AcceptedAt = &t
	}
	return &cp
}
