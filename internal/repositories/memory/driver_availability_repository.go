package memory

import (
	"context"
	"sync"

	"nepway/internal/models"
	"nepway/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DriverAvailabilityRepository struct {
	mu      sync.RWMutex
	drivers map[primitive.ObjectID]*models.DriverAvailability
}

var _ interfaces.DriverAvailabilityRepository = (*DriverAvailabilityRepository)(nil)

func NewDriverAvailabilityRepository() *DriverAvailabilityRepository {
	return &DriverAvailabilityRepository{drivers: make(map[primitive.ObjectID]*models.DriverAvailability)}
}

func (r *DriverAvailabilityRepository) Get(_ context.Context, driverID primitive.ObjectID) (*models.DriverAvailability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	availability, ok := r.drivers[driverID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return cloneAvailability(availability), nil
}

func (r *DriverAvailabilityRepository) Upsert(_ context.Context, availability *models.DriverAvailability) (*models.DriverAvailability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.drivers[availability.DriverID]
	if !ok {
		stored = &models.DriverAvailability{DriverID: availability.DriverID}
		r.drivers[availability.DriverID] = stored
	}
	stored.IsAvailable = availability.IsAvailable
	stored.LastActive = availability.LastActive
	if availability.CurrentLocation != nil {
		loc := *availability.CurrentLocation
		stored.CurrentLocation = &loc
	}
	return cloneAvailability(stored), nil
}

func cloneAvailability(a *models.DriverAvailability) *models.DriverAvailability {
	cp := *a
	if a.CurrentLocation != nil {
		loc := *a.CurrentLocation
		cp.CurrentLocation = &loc
	}
	if a.LastActive != nil {
		at := *a.LastActive
		cp.LastActive = &at
	}
	return &cp
}
