package core

import "github.com/arotu/chat-server/internal/chat"

// EventKind is a notification the hub emits to clients.
type EventKind int

const (
	// EventPrivateMessage delivers a private message to a user-topic subscriber.
	EventPrivateMessage EventKind = iota
	// EventRoomMessage delivers a room message to a room-topic subscriber.
	EventRoomMessage
	// EventOnlineUsers delivers the current online-identity list.
	EventOnlineUsers
	// EventError notifies the originating connection about a failure.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Message *chat.Message // for message events
	Users   []string      // for EventOnlineUsers
	Error   *Error        // for EventError
}

// Error wraps a code and human-readable message for error events.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
