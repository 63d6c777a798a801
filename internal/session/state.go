// Package session implements the client-side chat room session: an
// immutable state snapshot evolved by a pure reducer, an optimistic
// message tracker reconciled against server confirmations, a listener
// translating room-channel broadcasts into reducer actions, and the
// controller that orchestrates REST calls and the channel lifecycle.
//
// Every state transition, whatever its origin (user operation, REST
// response, or broadcast), flows through Controller.dispatch, which is
// the single serialization point for the room's state.
package session

import "github.com/parley/chat-app/internal/chat"

// ConnectionStatus is the room channel's connection state machine:
// idle → connecting → connected on a successful subscription,
// connecting → error on subscribe failure, connected → disconnected on
// ack timeout. No state is terminal; a fresh subscription resumes from
// error or disconnected.
type ConnectionStatus string

const (
	StatusIdle         ConnectionStatus = "idle"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusError        ConnectionStatus = "error"
)

// MessageList holds the room's loaded messages in newest-first order
// together with pagination and load-state flags.
type MessageList struct {
	Items     []chat.Message
	HasMore   bool
	IsLoading bool
	Err       error
}

// ReactionAggregate is the server-authoritative reaction state for one
// message. TotalLikes is always an absolute count, never a delta.
type ReactionAggregate struct {
	IsLiked    bool
	TotalLikes int
	UserID     string // who toggled last
}

// Participants holds the room's member list.
type Participants struct {
	List  []chat.Participant
	Count int
}

// Input holds the message composer state.
type Input struct {
	Value       string
	ReplyTarget *chat.Message
	IsComposing bool
}

// UI holds view flags the reducer owns on behalf of the view layer.
type UI struct {
	AutoScroll      bool
	ShowEmojiPicker bool
}

// Connection holds the channel connection state.
type Connection struct {
	Status           ConnectionStatus
	ReconnectAttempt int
}

// State is the authoritative in-memory snapshot of one room session.
// It is owned by exactly one Controller; callers only ever see copies.
//
// Optimistic maps temporary ids to their pending messages. Every key in
// it has a list entry with the same id; the reducer inserts and removes
// both sides inside the same transition, never independently.
type State struct {
	Room         *chat.Room
	Messages     MessageList
	Optimistic   map[string]chat.Message
	Reactions    map[string]ReactionAggregate
	Participants Participants
	Input        Input
	UI           UI
	Connection   Connection
}

// NewState returns the initial state for a freshly mounted room.
func NewState() State {
	return State{
		Messages:   MessageList{Items: []chat.Message{}},
		Optimistic: map[string]chat.Message{},
		Reactions:  map[string]ReactionAggregate{},
		UI:         UI{AutoScroll: true},
		Connection: Connection{Status: StatusIdle},
	}
}

// clone copies the containers the reducer may rewrite so that a
// returned state never aliases its predecessor's mutable parts.
func (s State) clone() State {
	next := s
	next.Messages.Items = append([]chat.Message(nil), s.Messages.Items...)
	next.Optimistic = make(map[string]chat.Message, len(s.Optimistic))
	for k, v := range s.Optimistic {
		next.Optimistic[k] = v
	}
	next.Reactions = make(map[string]ReactionAggregate, len(s.Reactions))
	for k, v := range s.Reactions {
		next.Reactions[k] = v
	}
	next.Participants.List = append([]chat.Participant(nil), s.Participants.List...)
	return next
}

// findMessage returns the index of the message with the given id, or -1.
func (s *State) findMessage(id string) int {
	for i := range s.Messages.Items {
		if s.Messages.Items[i].ID == id {
			return i
		}
	}
	return -1
}
