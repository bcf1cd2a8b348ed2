package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IdentityFunc extracts the authenticated caller from the request context.
type IdentityFunc func(c *gin.Context) (primitive.ObjectID, string, bool)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	opts     Options
	identity IdentityFunc
}

func NewHandler(hub *Hub, opts Options, identity IdentityFunc) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		opts:     opts,
		identity: identity,
	}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID, userType, ok := h.identity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, userID, userType, h.opts)
	h.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
