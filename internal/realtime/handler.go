package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/http/respond"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// ErrTopicsForbidden is returned when a non-admin asks for topic subscriptions.
var ErrTopicsForbidden = errors.New("realtime: topic subscriptions require admin role")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// TokenVerifier resolves an access token to the caller.
type TokenVerifier interface {
	VerifyAccess(token string) (identity.Principal, error)
}

// ClientMessage is an inbound control frame.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

type controlReply struct {
	Type    string   `json:"type"`
	Topics  []string `json:"topics,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Handler upgrades authenticated requests to WebSocket connections.
type Handler struct {
	hub      *Hub
	verifier TokenVerifier
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewHandler creates the /ws handler. allowedOrigins empty means any origin.
func NewHandler(hub *Hub, verifier TokenVerifier, allowedOrigins []string, logger *logging.Logger) *Handler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &Handler{
		hub:      hub,
		verifier: verifier,
		logger:   logging.OrDefault(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(origins) == 0 || origin == "" {
					return true
				}
				_, ok := origins["*"]
				if !ok {
					_, ok = origins[strings.TrimRight(origin, "/")]
				}
				return ok
			},
		},
	}
}

// ServeHTTP handles GET /ws?token=<access token>. A bearer Authorization header is
// accepted as well.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	if token == "" {
		respond.Error(w, r, h.logger, apperr.New(apperr.KindUnauthorized, "missing token"))
		return
	}
	principal, err := h.verifier.VerifyAccess(token)
	if err != nil {
		respond.Error(w, r, h.logger, apperr.Wrap(apperr.KindUnauthorized, "invalid token", err))
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(uuid.NewString(), principal)
	h.hub.Register(client)
	h.logger.Debug("websocket connected", "client_id", client.ID, "user_id", client.UserID, "role", client.Role)

	go h.writePump(client, ws)
	go h.readPump(client, ws)
}

func (h *Handler) readPump(c *Client, ws *websocket.Conn) {
	defer func() {
		h.hub.Unregister(c)
		ws.Close()
	}()
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", "error", err, "client_id", c.ID)
			}
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		h.reply(c, h.process(c, msg))
	}
}

func (h *Handler) process(c *Client, msg ClientMessage) controlReply {
	switch strings.ToLower(msg.Action) {
	case "subscribe":
		accepted, err := h.hub.Subscribe(c, msg.Topics)
		if err != nil {
			return controlReply{Type: "error", Message: "topic subscriptions are limited to admins"}
		}
		names := make([]string, len(accepted))
		for i, t := range accepted {
			names[i] = string(t)
		}
		return controlReply{Type: "subscribed", Topics: names}
	case "unsubscribe":
		h.hub.Unsubscribe(c, msg.Topics)
		return controlReply{Type: "unsubscribed", Topics: msg.Topics}
	case "ping":
		return controlReply{Type: "pong"}
	default:
		return controlReply{Type: "error", Message: "unknown action"}
	}
}

// reply queues a control frame. The hub may have closed Send already when the
// connection is going away, so the send is guarded by membership.
func (h *Handler) reply(c *Client, msg controlReply) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.hub.mu.RLock()
	defer h.hub.mu.RUnlock()
	if _, ok := h.hub.all[c]; !ok {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (h *Handler) writePump(c *Client, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
