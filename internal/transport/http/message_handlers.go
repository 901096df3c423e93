package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/arotu/chat-server/internal/chat"
)

// MessageHandlers provides HTTP handlers for the message ingress API
// and conversation queries.
type MessageHandlers struct {
	svc *chat.Service
	log *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(svc *chat.Service, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		svc: svc,
		log: logger,
	}
}

// CreatePrivateMessageRequest represents the private message request
// body. The sender always comes from the authenticated context.
type CreatePrivateMessageRequest struct {
	Receiver string `json:"receiver" binding:"required"`
	Text     string `json:"text"`
	Media    string `json:"media"`
}

// CreateRoomMessageRequest represents the room message request body.
type CreateRoomMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// SeenResponse reports how many messages a seen action updated.
type SeenResponse struct {
	Updated int64 `json:"updated"`
}

// CreatePrivateMessage handles sending a private message.
// POST /api/messages/private
func (h *MessageHandlers) CreatePrivateMessage(c *gin.Context) {
	senderID, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreatePrivateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid private message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.svc.CreatePrivateMessage(c.Request.Context(), senderID, req.Receiver, req.Text, req.Media)
	if err != nil {
		h.respondError(c, err, "failed to create private message")
		return
	}

	h.log.Info().Str("message_id", msg.ID).Str("sender_id", senderID).Str("receiver_id", req.Receiver).Msg("private message created")
	c.JSON(http.StatusCreated, msg)
}

// ListPrivateMessages handles fetching the conversation with another user.
// GET /api/messages/private/:userId
func (h *MessageHandlers) ListPrivateMessages(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	otherID := c.Param("userId")
	messages, err := h.svc.ListPrivateMessages(c.Request.Context(), uid, otherID)
	if err != nil {
		h.respondError(c, err, "failed to list private messages")
		return
	}

	c.JSON(http.StatusOK, messages)
}

// RecentConversations handles listing recent conversation partners.
// GET /api/messages/recent-conversations
func (h *MessageHandlers) RecentConversations(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	conversations, err := h.svc.RecentConversations(c.Request.Context(), uid)
	if err != nil {
		h.respondError(c, err, "failed to list recent conversations")
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// ConversationPartners handles listing distinct conversation partners.
// GET /api/messages/partners
func (h *MessageHandlers) ConversationPartners(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	partners, err := h.svc.ConversationPartners(c.Request.Context(), uid)
	if err != nil {
		h.respondError(c, err, "failed to list conversation partners")
		return
	}

	c.JSON(http.StatusOK, partners)
}

// MarkSeen flags messages from the other user as seen.
// POST /api/messages/private/:userId/seen
func (h *MessageHandlers) MarkSeen(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	updated, err := h.svc.MarkSeen(c.Request.Context(), uid, c.Param("userId"))
	if err != nil {
		h.respondError(c, err, "failed to mark messages seen")
		return
	}

	c.JSON(http.StatusOK, SeenResponse{Updated: updated})
}

// CreateRoomMessage handles sending a message into a room.
// POST /api/rooms/:roomId/messages
func (h *MessageHandlers) CreateRoomMessage(c *gin.Context) {
	senderID, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateRoomMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid room message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	roomID := c.Param("roomId")
	msg, err := h.svc.CreateRoomMessage(c.Request.Context(), senderID, roomID, req.Text)
	if err != nil {
		h.respondError(c, err, "failed to create room message")
		return
	}

	h.log.Info().Str("message_id", msg.ID).Str("sender_id", senderID).Str("room_id", roomID).Msg("room message created")
	c.JSON(http.StatusCreated, msg)
}

// ListRoomMessages handles fetching a room's history.
// GET /api/rooms/:roomId/messages
func (h *MessageHandlers) ListRoomMessages(c *gin.Context) {
	if _, ok := userID(c); !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	messages, err := h.svc.ListRoomMessages(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		h.respondError(c, err, "failed to list room messages")
		return
	}

	c.JSON(http.StatusOK, messages)
}

// respondError maps service errors onto HTTP statuses.
func (h *MessageHandlers) respondError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, chat.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, chat.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
	case errors.Is(err, chat.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error().Err(err).Msg(logMsg)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
