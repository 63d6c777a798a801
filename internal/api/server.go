// Package api implements the REST surface of the chat application with
// gin: authentication, profile, room, message, reaction, and participant
// endpoints. Every failure is returned as {"error":{"code","message"}}
// with one code from the shared taxonomy.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/parley/chat-app/internal/auth"
	"github.com/parley/chat-app/internal/chat"
	"github.com/parley/chat-app/internal/metrics"
	"github.com/parley/chat-app/internal/ratelimit"
	"github.com/parley/chat-app/internal/store"
)

// Store is the persistence surface the handlers consume. *store.Store
// implements it; tests substitute fakes.
type Store interface {
	CreateUser(ctx context.Context, email, nickname, passwordHash string) (*chat.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.Account, error)
	GetUserByID(ctx context.Context, id string) (*chat.User, error)
	GetAccountByID(ctx context.Context, id string) (*store.Account, error)
	UpdateNickname(ctx context.Context, userID, nickname string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	CreateRoom(ctx context.Context, name, creatorID string) (*chat.Room, error)
	GetRoom(ctx context.Context, roomID string) (*chat.Room, error)
	ListRooms(ctx context.Context) ([]chat.Room, error)

	ListMessages(ctx context.Context, roomID string, limit, offset int) ([]chat.Message, bool, int, error)
	InsertMessage(ctx context.Context, roomID, userID, content string, msgType chat.MessageType, parentMessageID *string) (*chat.Message, error)
	GetMessage(ctx context.Context, roomID, messageID string) (*chat.Message, error)
	SoftDeleteMessage(ctx context.Context, roomID, messageID string) error

	ToggleReaction(ctx context.Context, messageID, userID string, reactionType chat.ReactionType) (isLiked bool, totalLikes int, err error)

	JoinRoom(ctx context.Context, roomID, userID string) (alreadyJoined bool, err error)
	ListParticipants(ctx context.Context, roomID string) ([]chat.Participant, error)
}

// Publisher fans server-side events out to room channels. May be nil.
type Publisher interface {
	PublishRoom(roomID, senderID, event string, payload any) error
}

// Presence reports how many users hold a live gateway connection to a
// room. May be nil.
type Presence interface {
	Count(ctx context.Context, roomID string) (int, error)
}

// Handler holds the dependencies shared by all route handlers.
type Handler struct {
	store    Store
	tokens   *auth.TokenIssuer
	limiter  *ratelimit.Limiter // optional, nil disables throttling
	channel  Publisher          // optional, nil disables server-side broadcasts
	presence Presence           // optional, nil omits online counts
}

// NewHandler wires a Handler. limiter, channel, and presence may be nil.
func NewHandler(st Store, tokens *auth.TokenIssuer, limiter *ratelimit.Limiter, channel Publisher, pres Presence) *Handler {
	return &Handler{store: st, tokens: tokens, limiter: limiter, channel: channel, presence: pres}
}

// NewRouter builds the gin engine with all routes and middleware attached.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestMetrics())

	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authGroup := r.Group("/auth")
	authGroup.Use(h.rateLimit(ratelimit.RuleAuth, clientIPKey))
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
	}
	r.GET("/auth/me", h.requireAuth(), h.me)

	profile := r.Group("/profile", h.requireAuth())
	{
		profile.PATCH("/nickname", h.updateNickname)
		profile.PATCH("/password", h.updatePassword)
	}

	rooms := r.Group("/rooms", h.requireAuth())
	{
		rooms.GET("", h.listRooms)
		rooms.POST("", h.createRoom)
		rooms.GET("/:roomId", h.getRoom)
		rooms.POST("/:roomId/join", h.rateLimit(ratelimit.RuleJoin, userIDKey), h.joinRoom)
		rooms.GET("/:roomId/participants", h.listParticipants)
		rooms.GET("/:roomId/messages", h.listMessages)
		rooms.POST("/:roomId/messages", h.rateLimit(ratelimit.RuleSend, userIDKey), h.sendMessage)
		rooms.DELETE("/:roomId/messages/:messageId", h.deleteMessage)
		rooms.POST("/:roomId/messages/:messageId/reactions", h.toggleReaction)
	}

	return r
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}
