package chat

import (
	"time"

	"github.com/arotu/chat-server/internal/store"
)

// UserSummary is the display-ready form of an identity reference.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Message is the canonical resolved message returned by the ingress
// API and published on the delivery channel. Sender is always
// resolved; exactly one of Receiver or RoomID is set, matching Kind.
type Message struct {
	ID        string            `json:"id"`
	Kind      store.MessageKind `json:"kind"`
	Sender    UserSummary       `json:"sender"`
	Receiver  *UserSummary      `json:"receiver,omitempty"`
	RoomID    string            `json:"room,omitempty"`
	Text      string            `json:"text"`
	Media     string            `json:"media,omitempty"`
	Seen      bool              `json:"seen"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Conversation pairs a conversation partner with the time of the most
// recent private message exchanged with them.
type Conversation struct {
	Participant     UserSummary `json:"participant"`
	LastMessageTime time.Time   `json:"lastMessageTime"`
}

// Topics returns the delivery topics a message is published on:
// receiver and sender user-topics for private messages (the sender
// copy keeps other devices in sync, same message id), the room-topic
// for room messages.
func (m *Message) Topics() []string {
	if m.Kind == store.MessageKindRoom {
		return []string{m.RoomID}
	}
	if m.Receiver == nil {
		return nil
	}
	if m.Receiver.ID == m.Sender.ID {
		return []string{m.Sender.ID}
	}
	return []string{m.Receiver.ID, m.Sender.ID}
}

func summarize(u *store.User) UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Avatar:   u.Avatar,
	}
}
