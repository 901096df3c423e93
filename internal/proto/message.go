package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client. Type is
// the explicit discriminant; Data is decoded per type before any
// business logic runs.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeAnnounce    = "announce"
	InboundTypeJoinRoom    = "join-room"
	InboundTypeLeaveRoom   = "leave-room"
	InboundTypeSendPrivate = "send-private"
	InboundTypeSendRoom    = "send-room"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventReceivePrivate = "receive-private"
	EventReceiveRoom    = "receive-room"
	EventOnlineUsers    = "online-users"
)

// RoomData names a room-topic to join or leave.
type RoomData struct {
	Room string `json:"room"`
}

// SendPrivateData is a private message send request. The sender is the
// connection's announced identity, never client-supplied.
type SendPrivateData struct {
	Receiver string `json:"receiver"`
	Text     string `json:"text"`
	Media    string `json:"media,omitempty"`
}

// SendRoomData is a room message send request.
type SendRoomData struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// UserRef is the display summary of an identity on the wire.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// EventMessage is a delivered chat message.
type EventMessage struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Sender    UserRef   `json:"sender"`
	Receiver  *UserRef  `json:"receiver,omitempty"`
	Room      string    `json:"room,omitempty"`
	Text      string    `json:"text"`
	Media     string    `json:"media,omitempty"`
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventOnlineUsersData carries the full online-identity list.
type EventOnlineUsersData struct {
	Users []string `json:"users"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
