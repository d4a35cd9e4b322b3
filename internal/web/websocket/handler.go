package websocket

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	webcontext "github.com/dragonbytelabs/dz/internal/web/context"
)

// Handler upgrades authenticated requests and attaches them to the hub
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a handler. checkOrigin may be nil, in which case only
// same-origin upgrades are accepted.
func NewHandler(hub *Hub, checkOrigin func(*http.Request) bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if u := webcontext.CurrentUser(r.Context()); u != nil {
		userID = u.ID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		id:     uuid.NewString(),
		userID: userID,
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, 64),
		logger: h.logger,
		topics: make(map[string]struct{}),
	}
	// ?topics=a,b subscribes at connect time
	if q := r.URL.Query().Get("topics"); q != "" {
		c.handle(clientMessage{Type: "subscribe", Topics: strings.Split(q, ",")})
	}
	if !h.hub.add(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
