package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/parley/chat-app/internal/chat"
	"github.com/parley/chat-app/internal/metrics"
	"github.com/parley/chat-app/internal/store"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

func (h *Handler) listMessages(c *gin.Context) {
	room := h.loadRoom(c, true)
	if room == nil {
		return
	}

	limit := intQuery(c, "limit", defaultMessageLimit)
	if limit < 1 || limit > maxMessageLimit {
		limit = defaultMessageLimit
	}
	offset := intQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	messages, hasMore, total, err := h.store.ListMessages(c.Request.Context(), room.ID, limit, offset)
	if err != nil {
		log.Printf("[api] list messages room=%s: %v", room.ID, err)
		fail(c, http.StatusInternalServerError, chat.CodeMessagesFetchFailed, "could not fetch messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"hasMore":  hasMore,
		"total":    total,
	})
}

type sendMessageRequest struct {
	Content         string  `json:"content"`
	Type            string  `json:"type"`
	ParentMessageID *string `json:"parentMessageId"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	room := h.loadRoom(c, true)
	if room == nil {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failInvalid(c, "malformed request body")
		return
	}
	if err := chat.ValidateContent(req.Content); err != nil {
		failInvalid(c, err.Error())
		return
	}
	msgType := chat.MessageType(req.Type)
	if req.Type == "" {
		msgType = chat.MessageTypeText
	}
	if !chat.ValidMessageType(msgType) {
		failInvalid(c, "unknown message type")
		return
	}

	userID := currentUserID(c)

	// Senders become participants on first message.
	alreadyJoined, err := h.store.JoinRoom(c.Request.Context(), room.ID, userID)
	if err != nil {
		log.Printf("[api] auto-join room=%s: %v", room.ID, err)
		fail(c, http.StatusInternalServerError, chat.CodeMessageSendFailed, "could not send message")
		return
	}
	if !alreadyJoined {
		h.announceJoin(c, room.ID, userID)
	}

	if req.ParentMessageID != nil {
		if _, err := h.store.GetMessage(c.Request.Context(), room.ID, *req.ParentMessageID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				fail(c, http.StatusNotFound, chat.CodeMessageNotFound, "parent message not found")
				return
			}
			log.Printf("[api] get parent message: %v", err)
			fail(c, http.StatusInternalServerError, chat.CodeMessageSendFailed, "could not send message")
			return
		}
	}

	message, err := h.store.InsertMessage(c.Request.Context(), room.ID, userID, req.Content, msgType, req.ParentMessageID)
	if err != nil {
		log.Printf("[api] insert message room=%s: %v", room.ID, err)
		fail(c, http.StatusInternalServerError, chat.CodeMessageSendFailed, "could not send message")
		return
	}

	metrics.MessagesSentTotal.Inc()
	c.JSON(http.StatusCreated, gin.H{"message": message})
}

func (h *Handler) deleteMessage(c *gin.Context) {
	room := h.loadRoom(c, true)
	if room == nil {
		return
	}

	messageID := c.Param("messageId")
	message, err := h.store.GetMessage(c.Request.Context(), room.ID, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, chat.CodeMessageNotFound, "message not found")
			return
		}
		log.Printf("[api] get message: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeMessageDeleteFailed, "could not delete message")
		return
	}

	// Only the author may delete.
	if message.UserID != currentUserID(c) {
		fail(c, http.StatusForbidden, chat.CodeUnauthorizedDelete, "only the author can delete a message")
		return
	}

	if err := h.store.SoftDeleteMessage(c.Request.Context(), room.ID, messageID); err != nil {
		log.Printf("[api] delete message=%s: %v", messageID, err)
		fail(c, http.StatusInternalServerError, chat.CodeMessageDeleteFailed, "could not delete message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messageId": messageID})
}

type reactionRequest struct {
	Type string `json:"type"`
}

func (h *Handler) toggleReaction(c *gin.Context) {
	room := h.loadRoom(c, true)
	if room == nil {
		return
	}

	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failInvalid(c, "malformed request body")
		return
	}
	reactionType := chat.ReactionType(req.Type)
	if req.Type == "" {
		reactionType = chat.ReactionTypeLike
	}
	if !chat.ValidReactionType(reactionType) {
		failInvalid(c, "unknown reaction type")
		return
	}

	messageID := c.Param("messageId")
	message, err := h.store.GetMessage(c.Request.Context(), room.ID, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, chat.CodeMessageNotFound, "message not found")
			return
		}
		log.Printf("[api] get message: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeReactionToggleFailed, "could not toggle reaction")
		return
	}

	userID := currentUserID(c)
	if message.UserID == userID {
		fail(c, http.StatusBadRequest, chat.CodeSelfReactionNotAllowed, "cannot react to your own message")
		return
	}

	isLiked, totalLikes, err := h.store.ToggleReaction(c.Request.Context(), messageID, userID, reactionType)
	if err != nil {
		log.Printf("[api] toggle reaction message=%s: %v", messageID, err)
		fail(c, http.StatusInternalServerError, chat.CodeReactionToggleFailed, "could not toggle reaction")
		return
	}

	c.JSON(http.StatusOK, gin.H{"isLiked": isLiked, "totalLikes": totalLikes})
}

// intQuery parses an integer query parameter with a default.
func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
