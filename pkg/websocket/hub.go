package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nepway/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MessageTypeWelcome      = "welcome"
	MessageTypeNotification = "notification"
	MessageTypeRideStatus   = "ride_status"
	MessageTypeJoinRide     = "join_ride"
	MessageTypeLeaveRide    = "leave_ride"
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
	logger     *logger.Logger
}

type Message struct {
	Type      string                 `json:"type"`
	RoomID    string                 `json:"room_id,omitempty"`
	UserID    primitive.ObjectID     `json:"user_id,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     log.WithField("component", "websocket_hub"),
	}
}

func UserRoom(userID primitive.ObjectID) string {
	return "user_" + userID.Hex()
}

func RideRoom(rideID primitive.ObjectID) string {
	return "ride_" + rideID.Hex()
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	h.joinRoom(client, UserRoom(client.UserID))

	h.logger.WithUserID(client.UserID).Debug("Websocket client registered")

	h.enqueue(client, Message{
		Type:      MessageTypeWelcome,
		UserID:    client.UserID,
		Timestamp: time.Now().Unix(),
		Data: map[string]interface{}{
			"message": "Connected successfully",
		},
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	close(client.send)

	for roomID := range client.rooms {
		if room, exists := h.rooms[roomID]; exists {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}

	h.logger.WithUserID(client.UserID).Debug("Websocket client unregistered")
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		h.removeLocked(client)
	}
}

// SendToUser delivers message to every connection of userID and reports
// whether at least one connection received it.
func (h *Hub) SendToUser(userID primitive.ObjectID, message Message) bool {
	return h.sendToRoom(UserRoom(userID), message)
}

func (h *Hub) SendRideUpdate(rideID primitive.ObjectID, message Message) bool {
	message.RoomID = RideRoom(rideID)
	return h.sendToRoom(message.RoomID, message)
}

func (h *Hub) sendToRoom(roomID string, message Message) bool {
	if message.Timestamp == 0 {
		message.Timestamp = time.Now().Unix()
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, exists := h.rooms[roomID]
	if !exists {
		return false
	}

	delivered := false
	for client := range room {
		if h.enqueue(client, message) {
			delivered = true
		}
	}
	return delivered
}

// enqueue drops clients whose buffer is full. Callers hold the write lock.
func (h *Hub) enqueue(client *Client, message Message) bool {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal websocket message")
		return false
	}

	select {
	case client.send <- data:
		return true
	default:
		h.removeLocked(client)
		return false
	}
}

func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		h.joinRoom(client, roomID)
	}
}

func (h *Hub) joinRoom(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if room, exists := h.rooms[roomID]; exists {
		delete(room, client)
		delete(client.rooms, roomID)

		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}
