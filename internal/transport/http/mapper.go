package http

import (
	"github.com/arotu/chat-server/internal/chat"
	"github.com/arotu/chat-server/internal/core"
	"github.com/arotu/chat-server/internal/proto"
)

// outboundFromEvent converts a hub event into its wire envelope.
func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventPrivateMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReceivePrivate,
			Data:  eventMessage(event.Message),
		}
	case core.EventRoomMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReceiveRoom,
			Data:  eventMessage(event.Message),
		}
	case core.EventOnlineUsers:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventOnlineUsers,
			Data:  proto.EventOnlineUsersData{Users: event.Users},
		}
	case core.EventError:
		return proto.Outbound{
			Type: proto.OutboundTypeError,
			Error: &proto.Error{
				Code: event.Error.Code,
				Msg:  event.Error.Message,
			},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func eventMessage(msg *chat.Message) proto.EventMessage {
	out := proto.EventMessage{
		ID:        msg.ID,
		Kind:      string(msg.Kind),
		Sender:    userRef(msg.Sender),
		Room:      msg.RoomID,
		Text:      msg.Text,
		Media:     msg.Media,
		Seen:      msg.Seen,
		CreatedAt: msg.CreatedAt,
	}
	if msg.Receiver != nil {
		ref := userRef(*msg.Receiver)
		out.Receiver = &ref
	}
	return out
}

func userRef(u chat.UserSummary) proto.UserRef {
	return proto.UserRef{
		ID:       u.ID,
		Username: u.Username,
		Avatar:   u.Avatar,
	}
}
