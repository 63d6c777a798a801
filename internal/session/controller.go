package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/parley/chat-app/internal/chat"
)

// DefaultPageSize is the message page size for initial load and paging.
const DefaultPageSize = 50

// Reconnect backoff bounds (exponential, doubling per attempt).
const (
	backoffBase = 1 * time.Second
	backoffCap  = 30 * time.Second
)

// RoomAPI is the REST surface the controller consumes. Implementations
// return *chat.APIError for structured server failures.
type RoomAPI interface {
	GetRoom(ctx context.Context, roomID string) (*chat.Room, error)
	JoinRoom(ctx context.Context, roomID string) (alreadyJoined bool, err error)
	ListMessages(ctx context.Context, roomID string, limit, offset int) (messages []chat.Message, hasMore bool, err error)
	SendMessage(ctx context.Context, roomID, content string, msgType chat.MessageType, parentMessageID *string) (*chat.Message, error)
	DeleteMessage(ctx context.Context, roomID, messageID string) error
	ToggleReaction(ctx context.Context, roomID, messageID string) (isLiked bool, totalLikes int, err error)
	ListParticipants(ctx context.Context, roomID string) ([]chat.Participant, error)
}

// Broadcaster is the room channel surface the controller consumes.
// Subscriptions must suppress the subscriber's own published events.
type Broadcaster interface {
	SubscribeRoom(roomID, sessionID string, handler func(event string, payload []byte)) error
	UnsubscribeRoom(roomID, sessionID string) error
	PublishRoom(roomID, senderID, event string, payload any) error
}

// Config wires a Controller. User is the explicitly passed session
// identity; the controller never consults ambient auth state.
type Config struct {
	RoomID   string
	User     chat.User
	API      RoomAPI
	Channel  Broadcaster
	PageSize int

	// Navigate is invoked when initialization hits ROOM_NOT_FOUND; the
	// caller leaves the room view. May be nil.
	Navigate func()

	// Notify surfaces transient operation failures to the user. May be nil.
	Notify func(err error)

	// OnChange observes every state transition. May be nil.
	OnChange func(State)
}

// Controller owns one room's session state for the lifetime of a
// mounted room view. All state transitions go through dispatch, which
// serializes REST-driven and broadcast-driven actions onto the same
// reducer. After Close, late-arriving responses and broadcasts are
// discarded rather than applied to a state the controller no longer owns.
type Controller struct {
	cfg       Config
	sessionID string

	mu    sync.Mutex
	state State

	done         chan struct{}
	closeOnce    sync.Once
	reconnecting atomic.Bool
}

// New creates a Controller for one room view. Call Initialize to load
// the room and open the channel, and Close on unmount.
func New(cfg Config) (*Controller, error) {
	if cfg.RoomID == "" {
		return nil, fmt.Errorf("session: room id is required")
	}
	if cfg.API == nil || cfg.Channel == nil {
		return nil, fmt.Errorf("session: api and channel are required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Controller{
		cfg:       cfg,
		sessionID: uuid.New().String(),
		state:     NewState(),
		done:      make(chan struct{}),
	}, nil
}

// SessionID identifies this controller instance on the room channel;
// it is the sender id stamped on every publish.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// State returns a snapshot of the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// dispatch applies an action through the reducer. It reports false when
// the controller has been closed, in which case the action is dropped.
func (c *Controller) dispatch(action Action) bool {
	c.mu.Lock()
	// Checked under mu: Close closes done while holding the same lock,
	// so a dispatch racing Close either lands before it or is dropped.
	select {
	case <-c.done:
		c.mu.Unlock()
		return false
	default:
	}

	c.state = Reduce(c.state, action)
	snapshot := c.state
	c.mu.Unlock()

	if c.cfg.OnChange != nil {
		c.cfg.OnChange(snapshot)
	}
	return true
}

// Initialize loads the room, joins it, fetches the first message page
// and the participant list, then opens the channel subscription.
// ROOM_NOT_FOUND triggers the Navigate callback; every other failure is
// recorded in state and surfaced without crashing the controller.
func (c *Controller) Initialize(ctx context.Context) error {
	room, err := c.cfg.API.GetRoom(ctx, c.cfg.RoomID)
	if err != nil {
		return c.initFailed(err)
	}
	c.dispatch(Action{Type: ActionInitRoom, Room: room})

	if _, err := c.cfg.API.JoinRoom(ctx, c.cfg.RoomID); err != nil {
		return c.initFailed(err)
	}

	c.dispatch(Action{Type: ActionLoadMessages})
	messages, hasMore, err := c.cfg.API.ListMessages(ctx, c.cfg.RoomID, c.cfg.PageSize, 0)
	if err != nil {
		return c.initFailed(err)
	}
	c.dispatch(Action{Type: ActionLoadMessagesSuccess, Messages: messages, HasMore: hasMore})

	participants, err := c.cfg.API.ListParticipants(ctx, c.cfg.RoomID)
	if err != nil {
		return c.initFailed(err)
	}
	c.dispatch(Action{Type: ActionSetParticipants, Participants: participants})

	c.connect()
	return nil
}

// initFailed records an initialization error, notifies, and performs
// the ROOM_NOT_FOUND navigation side effect.
func (c *Controller) initFailed(err error) error {
	c.dispatch(Action{Type: ActionLoadMessagesError, Err: err})
	c.notify(err)

	var apiErr *chat.APIError
	if errors.As(err, &apiErr) && apiErr.Code == chat.CodeRoomNotFound && c.cfg.Navigate != nil {
		c.cfg.Navigate()
	}
	return err
}

// SendMessage constructs a provisional message under a temporary id,
// applies it optimistically before any network I/O, then reconciles
// with the server response: confirmed messages replace the provisional
// entry in place and are re-broadcast for other sessions; failures
// revert the provisional entry so nothing stuck remains visible.
func (c *Controller) SendMessage(ctx context.Context, content string, msgType chat.MessageType) error {
	if err := chat.ValidateContent(content); err != nil {
		c.notify(err)
		return err
	}
	if !chat.ValidMessageType(msgType) {
		err := fmt.Errorf("session: unknown message type %q", msgType)
		c.notify(err)
		return err
	}

	c.mu.Lock()
	replyTarget := c.state.Input.ReplyTarget
	c.mu.Unlock()

	var parentID *string
	if replyTarget != nil {
		id := replyTarget.ID
		parentID = &id
	}

	// The temp- prefix guarantees no collision with server UUIDs.
	tempID := "temp-" + uuid.New().String()
	now := time.Now()
	user := c.cfg.User
	provisional := chat.Message{
		ID:              tempID,
		RoomID:          c.cfg.RoomID,
		UserID:          user.ID,
		User:            &user,
		Content:         content,
		Type:            msgType,
		ParentMessageID: parentID,
		Reactions:       []chat.Reaction{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Synchronous optimistic insert: the UI reflects the send before
	// the network call suspends this operation.
	c.dispatch(Action{Type: ActionAddOptimisticMessage, TempID: tempID, Message: &provisional})

	confirmed, err := c.cfg.API.SendMessage(ctx, c.cfg.RoomID, content, msgType, parentID)
	if err != nil {
		c.dispatch(Action{Type: ActionRevertOptimisticMessage, TempID: tempID})
		c.notify(err)
		return err
	}

	c.dispatch(Action{Type: ActionConfirmOptimisticMessage, TempID: tempID, Message: confirmed})
	c.publish(chat.EventNewMessage, confirmed)
	c.dispatch(Action{Type: ActionClearInput})
	return nil
}

// DeleteMessage soft-deletes a message server-side, then applies and
// broadcasts the deletion. There is no optimistic path: an undelete has
// no safe client-side revert once shown, so deletion is confirmed-only.
func (c *Controller) DeleteMessage(ctx context.Context, messageID string) error {
	if err := c.cfg.API.DeleteMessage(ctx, c.cfg.RoomID, messageID); err != nil {
		c.notify(err)
		return err
	}

	c.dispatch(Action{Type: ActionDeleteMessage, MessageID: messageID})
	c.publish(chat.EventMessageDeleted, chat.MessageDeletedPayload{MessageID: messageID})
	return nil
}

// ToggleReaction flips the current user's like on a message. Reacting
// to one's own message is suppressed locally, mirroring the server-side
// rule. The dispatched and broadcast aggregate is the server-returned
// count, never client arithmetic, so concurrent toggles converge.
func (c *Controller) ToggleReaction(ctx context.Context, messageID string) error {
	if c.cfg.User.ID == "" {
		err := fmt.Errorf("session: a user id is required to react")
		c.notify(err)
		return err
	}

	c.mu.Lock()
	var authorID string
	if i := c.state.findMessage(messageID); i >= 0 {
		authorID = c.state.Messages.Items[i].UserID
	}
	c.mu.Unlock()

	if authorID == c.cfg.User.ID {
		err := fmt.Errorf("session: cannot react to own message")
		c.notify(err)
		return err
	}

	isLiked, totalLikes, err := c.cfg.API.ToggleReaction(ctx, c.cfg.RoomID, messageID)
	if err != nil {
		c.notify(err)
		return err
	}

	payload := chat.ReactionUpdatedPayload{
		MessageID:  messageID,
		IsLiked:    isLiked,
		TotalLikes: totalLikes,
		UserID:     c.cfg.User.ID,
	}
	c.dispatch(Action{Type: ActionUpdateReaction, Reaction: payload})
	c.publish(chat.EventReactionUpdated, payload)
	return nil
}

// LoadMoreMessages fetches the next (older) page and appends it. It is
// a no-op while a load is in flight or when no more pages exist.
func (c *Controller) LoadMoreMessages(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Messages.IsLoading || !c.state.Messages.HasMore {
		c.mu.Unlock()
		return nil
	}
	offset := len(c.state.Messages.Items)
	c.mu.Unlock()

	c.dispatch(Action{Type: ActionLoadMoreMessages})

	messages, hasMore, err := c.cfg.API.ListMessages(ctx, c.cfg.RoomID, c.cfg.PageSize, offset)
	if err != nil {
		c.dispatch(Action{Type: ActionLoadMessagesError, Err: err})
		c.notify(err)
		return err
	}
	c.dispatch(Action{Type: ActionLoadMoreMessagesSuccess, Messages: messages, HasMore: hasMore})
	return nil
}

// Input and UI operations; each maps to exactly one reducer action.

func (c *Controller) UpdateInput(value string) {
	c.dispatch(Action{Type: ActionSetInputValue, Value: value})
}

func (c *Controller) SetReplyTarget(message *chat.Message) {
	c.dispatch(Action{Type: ActionSetReplyTarget, Message: message})
}

func (c *Controller) ClearInput() {
	c.dispatch(Action{Type: ActionClearInput})
}

func (c *Controller) SetComposing(composing bool) {
	c.dispatch(Action{Type: ActionSetComposing, Flag: composing})
}

func (c *Controller) SetAutoScroll(on bool) {
	c.dispatch(Action{Type: ActionSetAutoScroll, Flag: on})
}

func (c *Controller) ToggleEmojiPicker() {
	c.dispatch(Action{Type: ActionToggleEmojiPicker})
}

// Reconnect resets the connection to connecting and attempts a fresh
// subscription immediately.
func (c *Controller) Reconnect() {
	c.connect()
}

// Close releases the channel subscription and stops all dispatching.
// In-flight operations may still complete their network calls, but
// their resolution handlers will not touch state afterwards.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.done)
		c.mu.Unlock()
		if err := c.cfg.Channel.UnsubscribeRoom(c.cfg.RoomID, c.sessionID); err != nil {
			log.Printf("[session] unsubscribe room=%s: %v", c.cfg.RoomID, err)
		}
	})
}

// connect opens the channel subscription, driving the connection state
// machine: connecting → connected, connecting → error on failure, or
// connecting → disconnected on ack timeout. Failures schedule a
// background reconnect with exponential backoff.
func (c *Controller) connect() {
	c.dispatch(Action{Type: ActionSetConnectionStatus, Status: StatusConnecting})

	err := c.cfg.Channel.SubscribeRoom(c.cfg.RoomID, c.sessionID, c.handleBroadcast)
	if err == nil {
		c.dispatch(Action{Type: ActionSetConnectionStatus, Status: StatusConnected})
		c.dispatch(Action{Type: ActionResetReconnectAttempt})
		return
	}

	if errors.Is(err, chat.ErrSubscribeTimeout) {
		c.dispatch(Action{Type: ActionSetConnectionStatus, Status: StatusDisconnected})
	} else {
		c.dispatch(Action{Type: ActionSetConnectionStatus, Status: StatusError})
	}
	log.Printf("[session] subscribe room=%s failed: %v", c.cfg.RoomID, err)
	c.scheduleReconnect()
}

// scheduleReconnect runs at most one background retry loop, doubling
// the delay per attempt up to the cap, until a subscription succeeds or
// the controller is closed.
func (c *Controller) scheduleReconnect() {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer c.reconnecting.Store(false)
		for {
			if !c.dispatch(Action{Type: ActionIncrementReconnectAttempt}) {
				return
			}

			c.mu.Lock()
			attempt := c.state.Connection.ReconnectAttempt
			c.mu.Unlock()

			select {
			case <-c.done:
				return
			case <-time.After(backoffDelay(attempt)):
			}

			c.dispatch(Action{Type: ActionSetConnectionStatus, Status: StatusConnecting})
			err := c.cfg.Channel.SubscribeRoom(c.cfg.RoomID, c.sessionID, c.handleBroadcast)
			if err == nil {
				c.dispatch(Action{Type: ActionSetConnectionStatus, Status: StatusConnected})
				c.dispatch(Action{Type: ActionResetReconnectAttempt})
				return
			}

			if errors.Is(err, chat.ErrSubscribeTimeout) {
				c.dispatch(Action{Type: ActionSetConnectionStatus, Status: StatusDisconnected})
			} else {
				c.dispatch(Action{Type: ActionSetConnectionStatus, Status: StatusError})
			}
			log.Printf("[session] reconnect attempt=%d room=%s failed: %v", attempt, c.cfg.RoomID, err)
		}
	}()
}

// backoffDelay returns the exponential reconnect delay for an attempt
// number (1-based), capped at backoffCap.
func backoffDelay(attempt int) time.Duration {
	d := backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	if d > backoffCap {
		return backoffCap
	}
	return d
}

// handleBroadcast translates inbound channel events into reducer
// actions. No business logic lives here; malformed payloads are logged
// and dropped. dispatch itself guards against a closed controller.
func (c *Controller) handleBroadcast(event string, payload []byte) {
	switch event {
	case chat.EventNewMessage:
		var msg chat.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Printf("[session] bad %s payload: %v", event, err)
			return
		}
		c.dispatch(Action{Type: ActionAddMessage, Message: &msg})

	case chat.EventMessageDeleted:
		var p chat.MessageDeletedPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			log.Printf("[session] bad %s payload: %v", event, err)
			return
		}
		c.dispatch(Action{Type: ActionDeleteMessage, MessageID: p.MessageID})

	case chat.EventReactionUpdated:
		var p chat.ReactionUpdatedPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			log.Printf("[session] bad %s payload: %v", event, err)
			return
		}
		c.dispatch(Action{Type: ActionUpdateReaction, Reaction: p})

	case chat.EventUserJoined:
		var p chat.UserJoinedPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			log.Printf("[session] bad %s payload: %v", event, err)
			return
		}
		now := time.Now()
		c.dispatch(Action{Type: ActionAddMessage, Message: &chat.Message{
			ID:        "system-join-" + p.UserID + "-" + now.Format(time.RFC3339Nano),
			RoomID:    c.cfg.RoomID,
			UserID:    p.UserID,
			Content:   p.Nickname + " joined the room",
			Type:      chat.MessageTypeSystem,
			Reactions: []chat.Reaction{},
			CreatedAt: now,
			UpdatedAt: now,
		}})

	default:
		log.Printf("[session] unknown broadcast event %q", event)
	}
}

// publish sends a confirmed event to the room channel for other
// sessions. Publish failures do not undo already-confirmed local state;
// they are logged and the REST state remains authoritative.
func (c *Controller) publish(event string, payload any) {
	if err := c.cfg.Channel.PublishRoom(c.cfg.RoomID, c.sessionID, event, payload); err != nil {
		log.Printf("[session] publish %s room=%s: %v", event, c.cfg.RoomID, err)
	}
}

func (c *Controller) notify(err error) {
	if c.cfg.Notify != nil {
		c.cfg.Notify(err)
	}
}
