package memory

import (
	"context"
	"sort"
	"sync"

	"nepway/internal/models"
	"nepway/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationRepository struct {
	mu            sync.RWMutex
	notifications []*models.Notification
}

var _ interfaces.NotificationRepository = (*NotificationRepository)(nil)

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

func (r *NotificationRepository) Create(_ context.Context, notification *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if notification.ID.IsZero() {
		notification.ID = primitive.NewObjectID()
	}
	cp := *notification
	r.notifications = append(r.notifications, &cp)
	return nil
}

func (r *NotificationRepository) ListByUser(_ context.Context, userID primitive.ObjectID, limit int) ([]*models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Notification, 0)
	for _, n := range r.notifications {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
