// Package chat defines the domain types shared by the REST API, the
// broadcast channel, and the client session controller: rooms, messages,
// reactions, participants, and the per-room broadcast event payloads.
// All JSON field names match the wire format consumed by web clients.
package chat

import "time"

// MessageType discriminates the kind of content a message carries.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeEmoji  MessageType = "emoji"
	MessageTypeSystem MessageType = "system"
)

// ReactionType is the kind of reaction attached to a message. Only
// "like" exists today; the column and wire format leave room for more.
type ReactionType string

const (
	ReactionTypeLike ReactionType = "like"
)

// User is the public projection of an account (no credentials).
type User struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
}

// Reaction is a single user's reaction to a message. At most one
// reaction of a given type exists per (message, user) pair.
type Reaction struct {
	ID        string       `json:"id"`
	MessageID string       `json:"messageId"`
	UserID    string       `json:"userId"`
	Type      ReactionType `json:"type"`
	CreatedAt time.Time    `json:"createdAt"`
}

// ParentPreview is the reduced view of a replied-to message embedded in
// its replies. Content is empty when the parent was soft-deleted.
type ParentPreview struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	UserID    string `json:"userId"`
	IsDeleted bool   `json:"isDeleted"`
	Nickname  string `json:"nickname,omitempty"`
}

// Message is a chat message as stored and broadcast. Before server
// confirmation a client-side message carries a temporary id (prefixed
// "temp-", never colliding with server-issued UUIDs).
type Message struct {
	ID              string         `json:"id"`
	RoomID          string         `json:"roomId"`
	UserID          string         `json:"userId"`
	User            *User          `json:"user,omitempty"`
	Content         string         `json:"content"`
	Type            MessageType    `json:"type"`
	ParentMessageID *string        `json:"parentMessageId"`
	ParentMessage   *ParentPreview `json:"parentMessage,omitempty"`
	IsDeleted       bool           `json:"isDeleted"`
	Reactions       []Reaction     `json:"reactions"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Participant is a user's membership in a room. Participants are added
// on join or first message and are never removed.
type Participant struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	User     User      `json:"user"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Room is a chat room. An inactive room is preserved but rejects reads
// and writes.
type Room struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
	ParticipantCount int       `json:"participantCount"`
}
