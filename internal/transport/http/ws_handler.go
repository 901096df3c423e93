package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arotu/chat-server/internal/auth"
	"github.com/arotu/chat-server/internal/chat"
	"github.com/arotu/chat-server/internal/core"
	"github.com/arotu/chat-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
// The connection's identity always comes from the verified token, never
// from event payloads.
type WSHandler struct {
	hub         *core.Hub
	svc         *chat.Service
	authService *auth.Service
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, svc *chat.Service, authService *auth.Service, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, svc: svc, authService: authService, log: logger}
}

// Handle is the gin endpoint for GET /ws.
func (h *WSHandler) Handle(c *gin.Context) {
	token := bearerToken(c.Request)
	if token == "" {
		c.JSON(stdhttp.StatusUnauthorized, ErrorResponse{Error: "missing token"})
		return
	}
	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		c.JSON(stdhttp.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(uuid.NewString())
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, claims.UserID)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, identity string) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}
		h.dispatch(ctx, client, identity, inbound)
	}
}

// dispatch validates an inbound event at the boundary and routes it.
// Failures become error events back to this connection only.
func (h *WSHandler) dispatch(ctx context.Context, client *core.Client, identity string, inbound proto.Inbound) {
	switch inbound.Type {
	case proto.InboundTypeAnnounce:
		h.hub.Announce(client, identity)

	case proto.InboundTypeJoinRoom:
		var data proto.RoomData
		if !h.decode(client, inbound.Data, &data) {
			return
		}
		if data.Room == "" {
			h.hub.SendError(client, chat.ErrCodeInvalidArgument, "room is required")
			return
		}
		if err := h.hub.JoinRoom(ctx, client, data.Room); err != nil {
			h.sendServiceError(client, err)
		}

	case proto.InboundTypeLeaveRoom:
		var data proto.RoomData
		if !h.decode(client, inbound.Data, &data) {
			return
		}
		if data.Room == "" {
			h.hub.SendError(client, chat.ErrCodeInvalidArgument, "room is required")
			return
		}
		h.hub.LeaveRoom(client, data.Room)

	case proto.InboundTypeSendPrivate:
		var data proto.SendPrivateData
		if !h.decode(client, inbound.Data, &data) {
			return
		}
		if data.Receiver == "" {
			h.hub.SendError(client, chat.ErrCodeInvalidArgument, "receiver is required")
			return
		}
		if _, err := h.svc.CreatePrivateMessage(ctx, identity, data.Receiver, data.Text, data.Media); err != nil {
			h.sendServiceError(client, err)
		}

	case proto.InboundTypeSendRoom:
		var data proto.SendRoomData
		if !h.decode(client, inbound.Data, &data) {
			return
		}
		if data.Room == "" {
			h.hub.SendError(client, chat.ErrCodeInvalidArgument, "room is required")
			return
		}
		if _, err := h.svc.CreateRoomMessage(ctx, identity, data.Room, data.Text); err != nil {
			h.sendServiceError(client, err)
		}

	default:
		h.hub.SendError(client, chat.ErrCodeInvalidArgument, "unknown message type")
	}
}

func (h *WSHandler) decode(client *core.Client, raw json.RawMessage, v any) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		h.hub.SendError(client, chat.ErrCodeInvalidArgument, "malformed event payload")
		return false
	}
	return true
}

func (h *WSHandler) sendServiceError(client *core.Client, err error) {
	h.hub.SendError(client, chat.Code(err), err.Error())
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
