package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/arotu/chat-server/internal/store"
)

// RoomHandlers provides HTTP handlers for the room directory. The
// messaging core consumes rooms as a capability check; these endpoints
// maintain the directory itself.
type RoomHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		log:   logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name       string  `json:"name" binding:"required,min=1,max=64"`
	IsPrivate  bool    `json:"isPrivate"`
	ParentRoom *string `json:"parentRoom"`
}

// AdminRequest names the user to promote or demote.
type AdminRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	IsPrivate  bool      `json:"isPrivate"`
	Kind       string    `json:"kind"`
	CreatorID  string    `json:"creator"`
	ParentRoom *string   `json:"parentRoom,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func roomResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		ID:         room.ID,
		Name:       room.Name,
		IsPrivate:  room.IsPrivate,
		Kind:       string(room.Kind),
		CreatorID:  room.CreatorID,
		ParentRoom: room.ParentID,
		CreatedAt:  room.CreatedAt,
	}
}

// CreateRoom handles room creation. A room with a parent becomes a sub
// room; the parent must be a main room.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room := &store.Room{
		Name:      req.Name,
		IsPrivate: req.IsPrivate,
		CreatorID: uid,
		Kind:      store.RoomKindMain,
	}
	if req.ParentRoom != nil {
		parent, err := h.store.GetRoomByID(c.Request.Context(), *req.ParentRoom)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, ErrorResponse{Error: "parent room not found"})
				return
			}
			h.log.Error().Err(err).Msg("failed to load parent room")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		if parent.Kind != store.RoomKindMain {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "parent must be a main room"})
			return
		}
		room.ParentID = req.ParentRoom
		room.Kind = store.RoomKindSub
	}

	created, err := h.store.CreateRoom(c.Request.Context(), room)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "room with this name already exists"})
			return
		}
		h.log.Error().Err(err).Str("room_name", req.Name).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room_id", created.ID).Str("room_name", created.Name).Str("creator_id", uid).Msg("room created")
	c.JSON(http.StatusCreated, roomResponse(created))
}

// ListRooms handles listing rooms visible to the user.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	rooms, err := h.store.ListRooms(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, roomResponse(room))
	}

	c.JSON(http.StatusOK, response)
}

// GetRoom handles fetching a single room, enforcing the private-room
// capability rule.
// GET /api/rooms/:roomId
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	room, err := h.store.GetRoomByID(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if room.IsPrivate {
		member, err := h.store.IsMember(c.Request.Context(), uid, room.ID)
		if err != nil {
			h.log.Error().Err(err).Msg("failed to check membership")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		if !member {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied to private room"})
			return
		}
	}

	c.JSON(http.StatusOK, roomResponse(room))
}

// JoinRoom adds the caller to a public room's member list.
// POST /api/rooms/:roomId/members
func (h *RoomHandlers) JoinRoom(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	roomID := c.Param("roomId")
	room, err := h.store.GetRoomByID(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if room.IsPrivate {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "private rooms are invite-only"})
		return
	}

	if err := h.store.AddMember(c.Request.Context(), uid, roomID); err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to add member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// LeaveRoom removes the caller from a room's member list.
// DELETE /api/rooms/:roomId/members
func (h *RoomHandlers) LeaveRoom(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.store.RemoveMember(c.Request.Context(), uid, c.Param("roomId")); err != nil {
		h.log.Error().Err(err).Msg("failed to remove member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// AddAdmin promotes a room member to admin. Only existing admins may
// do this.
// POST /api/rooms/:roomId/admins
func (h *RoomHandlers) AddAdmin(c *gin.Context) {
	h.changeAdmin(c, true)
}

// RemoveAdmin demotes a room admin.
// DELETE /api/rooms/:roomId/admins
func (h *RoomHandlers) RemoveAdmin(c *gin.Context) {
	h.changeAdmin(c, false)
}

func (h *RoomHandlers) changeAdmin(c *gin.Context, promote bool) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req AdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	roomID := c.Param("roomId")
	if _, err := h.store.GetRoomByID(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	isAdmin, err := h.store.IsAdmin(c.Request.Context(), uid, roomID)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to check admin")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !isAdmin {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only admins can manage admins"})
		return
	}

	if promote {
		err = h.store.AddAdmin(c.Request.Context(), req.UserID, roomID)
	} else {
		err = h.store.RemoveAdmin(c.Request.Context(), req.UserID, roomID)
	}
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to change admin")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}
