package services

import (
	"context"
	"sync"
	"time"

	"nepway/internal/models"
	"nepway/internal/observability"
	"nepway/internal/repositories/interfaces"
	"nepway/pkg/logger"
	"nepway/pkg/push"
	"nepway/pkg/scheduler"
	"nepway/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultNotificationLimit = 50
	notificationTimeout      = 10 * time.Second
)

// RealtimeSender delivers messages to connected websocket clients.
type RealtimeSender interface {
	SendToUser(userID primitive.ObjectID, message websocket.Message) bool
	SendRideUpdate(rideID primitive.ObjectID, message websocket.Message) bool
}

type NotificationService interface {
	// Delivery
	Notify(ctx context.Context, notification *models.Notification)
	NotifyRideStatus(ctx context.Context, ride *models.Ride, message string)

	// Queries
	List(ctx context.Context, userID primitive.ObjectID, limit int) ([]*models.Notification, error)

	// Wait blocks until queued deliveries have finished.
	Wait()
}

type notificationService struct {
	repo        interfaces.NotificationRepository
	realtime    RealtimeSender
	push        push.PushProvider
	topicPrefix string
	clock       scheduler.Clock
	logger      *logger.Logger
	wg          sync.WaitGroup
}

// NewNotificationService builds the notification sink. realtime and pusher
// are optional.
func NewNotificationService(
	repo interfaces.NotificationRepository,
	realtime RealtimeSender,
	pusher push.PushProvider,
	topicPrefix string,
	clock scheduler.Clock,
	log *logger.Logger,
) NotificationService {
	if clock == nil {
		clock = scheduler.RealClock()
	}
	return &notificationService{
		repo:        repo,
		realtime:    realtime,
		push:        pusher,
		topicPrefix: topicPrefix,
		clock:       clock,
		logger:      log.WithField("component", "notification_service"),
	}
}

func (s *notificationService) Notify(ctx context.Context, notification *models.Notification) {
	if notification.ID.IsZero() {
		notification.ID = primitive.NewObjectID()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = s.clock.Now()
	}
	ctx = context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, notificationTimeout)
		defer cancel()
		s.deliver(ctx, notification)
	}()
}

// NotifyRideStatus tells every passenger of ride about its new status and
// pushes the status to clients watching the ride.
func (s *notificationService) NotifyRideStatus(ctx context.Context, ride *models.Ride, message string) {
	rideID := ride.ID
	for _, passengerID := range ride.UniquePassengers() {
		s.Notify(ctx, &models.Notification{
			UserID:      passengerID,
			Type:        models.NotificationTypeRideRequest,
			Title:       models.RideStatusNotificationTitle,
			Message:     message,
			RelatedRide: &rideID,
		})
	}

	if s.realtime != nil {
		s.realtime.SendRideUpdate(ride.ID, websocket.Message{
			Type:      websocket.MessageTypeRideStatus,
			Timestamp: s.clock.Now().Unix(),
			Data: map[string]interface{}{
				"ride_id": ride.ID.Hex(),
				"status":  ride.Status,
			},
		})
	}
}

func (s *notificationService) List(ctx context.Context, userID primitive.ObjectID, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > defaultNotificationLimit {
		limit = defaultNotificationLimit
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *notificationService) Wait() {
	s.wg.Wait()
}

func (s *notificationService) deliver(ctx context.Context, n *models.Notification) {
	log := s.logger.WithUserID(n.UserID).WithField("notification_type", n.Type)

	if err := s.repo.Create(ctx, n); err != nil {
		log.WithError(err).Error("Failed to store notification")
		observability.NotificationsTotal.WithLabelValues("store", observability.ResultError).Inc()
	} else {
		observability.NotificationsTotal.WithLabelValues("store", observability.ResultSuccess).Inc()
	}

	if s.realtime != nil {
		delivered := s.realtime.SendToUser(n.UserID, websocket.Message{
			Type:      websocket.MessageTypeNotification,
			UserID:    n.UserID,
			Timestamp: n.CreatedAt.Unix(),
			Data: map[string]interface{}{
				"id":      n.ID.Hex(),
				"type":    n.Type,
				"title":   n.Title,
				"message": n.Message,
			},
		})
		if delivered {
			observability.NotificationsTotal.WithLabelValues("websocket", observability.ResultSuccess).Inc()
		}
	}

	if s.push != nil {
		data := map[string]string{"notification_id": n.ID.Hex(), "type": string(n.Type)}
		if n.RelatedRide != nil {
			data["ride_id"] = n.RelatedRide.Hex()
		}
		if n.RelatedRequest != nil {
			data["request_id"] = n.RelatedRequest.Hex()
		}
		_, err := s.push.SendNotification(ctx, &push.NotificationRequest{
			Topic: s.topicPrefix + n.UserID.Hex(),
			Title: n.Title,
			Body:  n.Message,
			Data:  data,
		})
		if err != nil {
			log.WithError(err).Warn("Failed to send push notification")
			observability.NotificationsTotal.WithLabelValues("push", observability.ResultError).Inc()
			return
		}
		observability.NotificationsTotal.WithLabelValues("push", observability.ResultSuccess).Inc()
	}
}
