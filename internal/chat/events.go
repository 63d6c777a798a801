package chat

// Broadcast event names carried on a room's channel. The payload for
// EventNewMessage is a full Message; the others use the structs below.
const (
	EventNewMessage      = "new_message"
	EventMessageDeleted  = "message_deleted"
	EventReactionUpdated = "reaction_updated"
	EventUserJoined      = "user_joined"
)

// MessageDeletedPayload announces a soft delete to other sessions.
type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
}

// ReactionUpdatedPayload carries the server-computed reaction aggregate.
// Receivers apply TotalLikes as an absolute value, never as a delta, so
// concurrent toggles from different users converge.
type ReactionUpdatedPayload struct {
	MessageID  string `json:"messageId"`
	IsLiked    bool   `json:"isLiked"`
	TotalLikes int    `json:"totalLikes"`
	UserID     string `json:"userId"`
}

// UserJoinedPayload announces a new participant.
type UserJoinedPayload struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
}
