package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// User represents a user account. Profile fields beyond the display
// summary (username, avatar) live in the wider social backend and are
// not modelled here.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Avatar       string
	Bio          string
	LastSeen     *time.Time
	CreatedAt    time.Time
}

// RoomKind defines the room hierarchy level.
type RoomKind string

const (
	RoomKindMain RoomKind = "main"
	RoomKindSub  RoomKind = "sub"
)

// Room represents a group chat room. A sub room always references a
// main room as its parent; a main room has no parent.
type Room struct {
	ID        string
	Name      string
	IsPrivate bool
	CreatorID string
	ParentID  *string
	Kind      RoomKind
	CreatedAt time.Time
}

// MessageKind is the stored discriminator for message routing.
type MessageKind string

const (
	MessageKindPrivate MessageKind = "private"
	MessageKindRoom    MessageKind = "room"
)

// Message represents a persisted chat message. Exactly one of
// ReceiverID (private) or RoomID (room) is set, matching Kind.
// Only Seen is ever mutated after creation.
type Message struct {
	ID         string
	Kind       MessageKind
	SenderID   string
	ReceiverID *string
	RoomID     *string
	Text       string
	Media      *string
	Seen       bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Conversation is a read-time aggregation: the other participant of a
// private conversation and the time of the most recent message in it.
type Conversation struct {
	ParticipantID   string
	LastMessageTime time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash, avatar string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUsersByIDs retrieves users for a set of IDs, keyed by ID.
	// Missing IDs are absent from the result, not an error.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*User, error)

	// SetLastSeen updates a user's last_seen timestamp. A nil value
	// marks the user as currently online.
	SetLastSeen(ctx context.Context, userID string, at *time.Time) error
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom creates a new room with the creator as first member
	// and admin.
	CreateRoom(ctx context.Context, room *Room) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id string) (*Room, error)

	// ListRooms lists all rooms visible to a user: public rooms plus
	// private rooms the user is a member of.
	ListRooms(ctx context.Context, userID string) ([]*Room, error)

	// AddMember adds a user to a room. Idempotent.
	AddMember(ctx context.Context, userID, roomID string) error

	// RemoveMember removes a user from a room.
	RemoveMember(ctx context.Context, userID, roomID string) error

	// IsMember checks if user is a member of the room.
	IsMember(ctx context.Context, userID, roomID string) (bool, error)

	// ListMembers lists all member IDs of a room.
	ListMembers(ctx context.Context, roomID string) ([]string, error)

	// AddAdmin marks a room member as admin. Idempotent.
	AddAdmin(ctx context.Context, userID, roomID string) error

	// RemoveAdmin removes admin status from a user.
	RemoveAdmin(ctx context.Context, userID, roomID string) error

	// IsAdmin checks if user is an admin of the room.
	IsAdmin(ctx context.Context, userID, roomID string) (bool, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message. The caller supplies ID and
	// timestamps; every call inserts a new row.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListPrivateMessages returns all private messages between two
	// users in either direction, ascending by creation time.
	ListPrivateMessages(ctx context.Context, userA, userB string) ([]*Message, error)

	// ListRoomMessages returns all messages for a room, ascending by
	// creation time.
	ListRoomMessages(ctx context.Context, roomID string) ([]*Message, error)

	// ListConversationMessages returns all private messages touching
	// the user, descending by creation time. Feeds the
	// recent-conversations fold.
	ListConversationMessages(ctx context.Context, userID string) ([]*Message, error)

	// MarkSeen flags private messages sent from otherID to userID as
	// seen. Returns the number of rows updated.
	MarkSeen(ctx context.Context, userID, otherID string) (int64, error)

	// CountMessages returns the total number of persisted messages.
	CountMessages(ctx context.Context) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
