package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arotu/chat-server/internal/chat"
	"github.com/arotu/chat-server/internal/metrics"
	"github.com/arotu/chat-server/internal/presence"
	"github.com/arotu/chat-server/internal/store"
)

// Hub is the delivery channel: a topic-based publish/subscribe fabric
// over live connections. Topics are either a user identity (private
// delivery and multi-device fan-out) or a room id. The hub never
// writes to the message store; the store is never read for delivery,
// only for the subscribe-time room capability check.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	topics  map[string]map[*Client]struct{}
	subs    map[*Client]map[string]struct{}

	registry presence.Registry
	rooms    store.RoomStore
	users    store.UserStore
	log      *zerolog.Logger
}

// NewHub creates a hub around an injected presence registry. rooms is
// consulted for the room-topic capability rule; users receives
// asynchronous last-seen updates and may be nil in tests.
func NewHub(registry presence.Registry, rooms store.RoomStore, users store.UserStore, logger *zerolog.Logger) *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		topics:   make(map[string]map[*Client]struct{}),
		subs:     make(map[*Client]map[string]struct{}),
		registry: registry,
		rooms:    rooms,
		users:    users,
		log:      logger,
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.Connections.Inc()
}

// Unregister removes a connection, its subscriptions, and its presence
// entry. If the connection's identity went offline with it, the online
// list is re-broadcast and last-seen is recorded asynchronously.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	for topic := range h.subs[c] {
		h.removeSubLocked(c, topic)
	}
	delete(h.subs, c)
	h.mu.Unlock()
	metrics.Connections.Dec()

	identity, stillOnline := h.registry.Forget(c)
	if identity == "" {
		return
	}
	if !stillOnline {
		now := time.Now().UTC()
		h.touchLastSeen(identity, &now)
	}
	h.broadcastOnlineUsers()
}

// Announce binds the connection to its authenticated identity,
// subscribes it to its own user-topic, and broadcasts the updated
// online-identity list. Idempotent for repeated announcements.
func (h *Hub) Announce(c *Client, identity string) {
	c.setIdentity(identity)
	h.registry.Announce(identity, c)
	h.subscribe(c, identity)
	h.touchLastSeen(identity, nil)
	h.broadcastOnlineUsers()
}

// JoinRoom subscribes the connection to a room-topic. The room
// capability rule is re-checked here: a private room only admits
// members.
func (h *Hub) JoinRoom(ctx context.Context, c *Client, roomID string) error {
	identity := c.Identity()
	if identity == "" {
		return fmt.Errorf("announce first: %w", chat.ErrUnauthenticated)
	}

	room, err := h.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("room %s: %w", roomID, chat.ErrNotFound)
		}
		return fmt.Errorf("get room: %w", err)
	}
	if room.IsPrivate {
		member, err := h.rooms.IsMember(ctx, identity, roomID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return fmt.Errorf("room %s is private: %w", roomID, chat.ErrForbidden)
		}
	}

	h.subscribe(c, roomID)
	return nil
}

// LeaveRoom unsubscribes the connection from a room-topic.
func (h *Hub) LeaveRoom(c *Client, roomID string) {
	h.mu.Lock()
	h.removeSubLocked(c, roomID)
	if subs, ok := h.subs[c]; ok {
		delete(subs, roomID)
	}
	h.mu.Unlock()
}

// PublishMessage implements chat.Publisher. The target connection set
// is collected across all topics before emitting, so a connection
// subscribed to more than one routing topic of the same message
// receives it exactly once.
func (h *Hub) PublishMessage(msg *chat.Message, topics ...string) {
	kind := EventPrivateMessage
	if msg.Kind == store.MessageKindRoom {
		kind = EventRoomMessage
	}
	event := &Event{Kind: kind, Message: msg}

	h.mu.RLock()
	targets := make(map[*Client]struct{})
	for _, topic := range topics {
		for c := range h.topics[topic] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()

	// No subscribers is a silent no-op: missed messages are served
	// from the store on the next history fetch.
	for c := range targets {
		h.send(c, event)
	}
}

// SendError emits an error event to a single connection, never
// broadcast.
func (h *Hub) SendError(c *Client, code, msg string) {
	h.send(c, &Event{Kind: EventError, Error: &Error{Code: code, Message: msg}})
}

// OnlineIdentities returns the current online-identity snapshot.
func (h *Hub) OnlineIdentities() []string {
	return h.registry.OnlineIdentities()
}

func (h *Hub) subscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][c] = struct{}{}

	if _, ok := h.subs[c]; !ok {
		h.subs[c] = make(map[string]struct{})
	}
	h.subs[c][topic] = struct{}{}
}

func (h *Hub) removeSubLocked(c *Client, topic string) {
	if subscribers, ok := h.topics[topic]; ok {
		delete(subscribers, c)
		if len(subscribers) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) broadcastOnlineUsers() {
	users := h.registry.OnlineIdentities()
	event := &Event{Kind: EventOnlineUsers, Users: users}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.send(c, event)
	}
}

func (h *Hub) send(c *Client, event *Event) {
	select {
	case c.Events <- event:
		metrics.Deliveries.Inc()
	default:
		// Drop if slow consumer.
		metrics.DroppedDeliveries.Inc()
		h.log.Warn().Str("conn_id", c.ID).Msg("dropping event for slow consumer")
	}
}

// touchLastSeen records presence transitions on the user row as a
// detached task. Errors are logged and never affect the event or
// response that triggered the update.
func (h *Hub) touchLastSeen(identity string, at *time.Time) {
	if h.users == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.users.SetLastSeen(ctx, identity, at); err != nil {
			h.log.Warn().Err(err).Str("user_id", identity).Msg("failed to update last_seen")
		}
	}()
}
