package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/parley/chat-app/internal/chat"
	"github.com/parley/chat-app/internal/metrics"
	"github.com/parley/chat-app/internal/store"
)

func (h *Handler) listRooms(c *gin.Context) {
	rooms, err := h.store.ListRooms(c.Request.Context())
	if err != nil {
		log.Printf("[api] list rooms: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeRoomListFailed, "could not list rooms")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

type createRoomRequest struct {
	Name string `json:"name"`
}

func (h *Handler) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failInvalid(c, "malformed request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		failInvalid(c, "a room name is required")
		return
	}

	room, err := h.store.CreateRoom(c.Request.Context(), req.Name, currentUserID(c))
	if err != nil {
		log.Printf("[api] create room: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeRoomCreateFailed, "could not create room")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": room})
}

// loadRoom fetches the room or aborts with ROOM_NOT_FOUND. When
// requireActive is set, inactive rooms abort with ROOM_INACTIVE.
func (h *Handler) loadRoom(c *gin.Context, requireActive bool) *chat.Room {
	room, err := h.store.GetRoom(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, chat.CodeRoomNotFound, "room not found")
			return nil
		}
		log.Printf("[api] get room: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeRoomNotFound, "room lookup failed")
		return nil
	}
	if requireActive && !room.IsActive {
		fail(c, http.StatusForbidden, chat.CodeRoomInactive, "room is inactive")
		return nil
	}
	return room
}

func (h *Handler) getRoom(c *gin.Context) {
	room := h.loadRoom(c, false)
	if room == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

func (h *Handler) joinRoom(c *gin.Context) {
	room := h.loadRoom(c, true)
	if room == nil {
		return
	}

	userID := currentUserID(c)
	alreadyJoined, err := h.store.JoinRoom(c.Request.Context(), room.ID, userID)
	if err != nil {
		log.Printf("[api] join room=%s: %v", room.ID, err)
		fail(c, http.StatusInternalServerError, chat.CodeJoinFailed, "could not join room")
		return
	}

	if !alreadyJoined {
		h.announceJoin(c, room.ID, userID)
	}

	c.JSON(http.StatusOK, gin.H{"alreadyJoined": alreadyJoined})
}

// announceJoin broadcasts user_joined for a first-time join. Broadcast
// failures are logged; the join itself already succeeded.
func (h *Handler) announceJoin(c *gin.Context, roomID, userID string) {
	if h.channel == nil {
		return
	}

	nickname := ""
	if user, err := h.store.GetUserByID(c.Request.Context(), userID); err == nil {
		nickname = user.Nickname
	}

	payload := chat.UserJoinedPayload{UserID: userID, Nickname: nickname}
	if err := h.channel.PublishRoom(roomID, userID, chat.EventUserJoined, payload); err != nil {
		log.Printf("[api] publish %s room=%s: %v", chat.EventUserJoined, roomID, err)
		return
	}
	metrics.BroadcastsTotal.WithLabelValues(chat.EventUserJoined).Inc()
}

func (h *Handler) listParticipants(c *gin.Context) {
	room := h.loadRoom(c, false)
	if room == nil {
		return
	}

	participants, err := h.store.ListParticipants(c.Request.Context(), room.ID)
	if err != nil {
		log.Printf("[api] list participants room=%s: %v", room.ID, err)
		fail(c, http.StatusInternalServerError, chat.CodeParticipantsFetchFailed, "could not fetch participants")
		return
	}

	online := 0
	if h.presence != nil {
		n, err := h.presence.Count(c.Request.Context(), room.ID)
		if err != nil {
			// Presence is advisory; the participant list still stands.
			log.Printf("[api] presence count room=%s: %v", room.ID, err)
		} else {
			online = n
		}
	}

	c.JSON(http.StatusOK, gin.H{"participants": participants, "online": online})
}
