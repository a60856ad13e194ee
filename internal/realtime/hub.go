// Package realtime pushes appointment events to connected WebSocket clients.
//
// Every client joins its own user room on connect. Admins may additionally subscribe to
// the appointment topics. Delivery is at-most-once: a client whose buffer is full misses
// the message, and nothing is replayed after a reconnect.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/wolfman30/doctor-booking-platform/internal/events"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
	"github.com/wolfman30/doctor-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

const sendBuffer = 64

// Client is one live connection.
type Client struct {
	ID     string
	UserID string
	Role   identity.Role
	Send   chan []byte

	topics map[events.Topic]struct{}
}

// NewClient creates a client for an authenticated caller.
func NewClient(id string, p identity.Principal) *Client {
	return &Client{
		ID:     id,
		UserID: p.UserID,
		Role:   p.Role,
		Send:   make(chan []byte, sendBuffer),
		topics: make(map[events.Topic]struct{}),
	}
}

// Hub tracks clients by topic and by user room. All methods are safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	topics  map[events.Topic]map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	all     map[*Client]struct{}
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// NewHub creates an empty hub.
func NewHub(m *metrics.BookingMetrics, logger *logging.Logger) *Hub {
	return &Hub{
		topics:  make(map[events.Topic]map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		metrics: m,
		logger:  logging.OrDefault(logger),
	}
}

// Register adds the client and joins it to its user room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[c] = struct{}{}
	if c.UserID != "" {
		if h.rooms[c.UserID] == nil {
			h.rooms[c.UserID] = make(map[*Client]struct{})
		}
		h.rooms[c.UserID][c] = struct{}{}
	}
}

// Unregister removes the client everywhere and closes its Send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[c]; !ok {
		return
	}
	for topic := range c.topics {
		if subs, ok := h.topics[topic]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	if room, ok := h.rooms[c.UserID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.UserID)
		}
	}
	delete(h.all, c)
	close(c.Send)
}

// Subscribe adds topic subscriptions for an admin client. It returns the topics that
// were accepted; unknown names are skipped and non-admins get ErrTopicsForbidden.
func (h *Hub) Subscribe(c *Client, names []string) ([]events.Topic, error) {
	if c.Role != identity.RoleAdmin {
		return nil, ErrTopicsForbidden
	}
	var accepted []events.Topic
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[c]; !ok {
		return nil, nil
	}
	for _, name := range names {
		topic, ok := events.ParseTopic(name)
		if !ok {
			continue
		}
		if h.topics[topic] == nil {
			h.topics[topic] = make(map[*Client]struct{})
		}
		h.topics[topic][c] = struct{}{}
		c.topics[topic] = struct{}{}
		accepted = append(accepted, topic)
	}
	return accepted, nil
}

// Unsubscribe drops topic subscriptions.
func (h *Hub) Unsubscribe(c *Client, names []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range names {
		topic, ok := events.ParseTopic(name)
		if !ok {
			continue
		}
		if subs, ok := h.topics[topic]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
		delete(c.topics, topic)
	}
}

// Publish delivers data to every subscriber of topic.
func (h *Hub) Publish(ctx context.Context, topic events.Topic, data any) {
	msg, ok := h.encode(topic, data)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(h.topics[topic], msg)
}

// SendToUser delivers data to every connection in the user's room.
func (h *Hub) SendToUser(ctx context.Context, userID string, topic events.Topic, data any) {
	msg, ok := h.encode(topic, data)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(h.rooms[userID], msg)
}

func (h *Hub) encode(topic events.Topic, data any) ([]byte, bool) {
	msg, err := json.Marshal(events.NewEnvelope(topic, data))
	if err != nil {
		h.logger.Error("failed to marshal realtime event", "error", err, "topic", topic)
		return nil, false
	}
	return msg, true
}

// deliver must be called with at least the read lock held.
func (h *Hub) deliver(set map[*Client]struct{}, msg []byte) {
	for c := range set {
		select {
		case c.Send <- msg:
			h.metrics.ObserveDelivery("delivered")
		default:
			h.metrics.ObserveDelivery("dropped")
			h.logger.Debug("realtime client buffer full", "client_id", c.ID, "user_id", c.UserID)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients subscribed to topic.
func (h *Hub) TopicCount(topic events.Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// RoomCount returns the number of connections in the user's room.
func (h *Hub) RoomCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}
