package session

import "github.com/parley/chat-app/internal/chat"

// ActionType discriminates reducer actions.
type ActionType string

const (
	// Initialization.
	ActionInitRoom   ActionType = "INIT_ROOM"
	ActionResetState ActionType = "RESET_STATE"

	// Messages.
	ActionLoadMessages            ActionType = "LOAD_MESSAGES"
	ActionLoadMessagesSuccess     ActionType = "LOAD_MESSAGES_SUCCESS"
	ActionLoadMessagesError       ActionType = "LOAD_MESSAGES_ERROR"
	ActionLoadMoreMessages        ActionType = "LOAD_MORE_MESSAGES"
	ActionLoadMoreMessagesSuccess ActionType = "LOAD_MORE_MESSAGES_SUCCESS"
	ActionAddMessage              ActionType = "ADD_MESSAGE"
	ActionUpdateMessage           ActionType = "UPDATE_MESSAGE"
	ActionDeleteMessage           ActionType = "DELETE_MESSAGE"

	// Optimistic updates.
	ActionAddOptimisticMessage     ActionType = "ADD_OPTIMISTIC_MESSAGE"
	ActionConfirmOptimisticMessage ActionType = "CONFIRM_OPTIMISTIC_MESSAGE"
	ActionRevertOptimisticMessage  ActionType = "REVERT_OPTIMISTIC_MESSAGE"

	// Reactions.
	ActionUpdateReaction ActionType = "UPDATE_REACTION"

	// Input management.
	ActionSetInputValue    ActionType = "SET_INPUT_VALUE"
	ActionSetReplyTarget   ActionType = "SET_REPLY_TARGET"
	ActionClearReplyTarget ActionType = "CLEAR_REPLY_TARGET"
	ActionSetComposing     ActionType = "SET_COMPOSING"
	ActionClearInput       ActionType = "CLEAR_INPUT"

	// UI state.
	ActionSetAutoScroll     ActionType = "SET_AUTO_SCROLL"
	ActionToggleEmojiPicker ActionType = "TOGGLE_EMOJI_PICKER"

	// Participants.
	ActionSetParticipants ActionType = "SET_PARTICIPANTS"

	// Connection.
	ActionSetConnectionStatus       ActionType = "SET_CONNECTION_STATUS"
	ActionIncrementReconnectAttempt ActionType = "INCREMENT_RECONNECT_ATTEMPT"
	ActionResetReconnectAttempt     ActionType = "RESET_RECONNECT_ATTEMPT"
)

// Action is one reducer input. Only the fields relevant to the action's
// type are set; everything else is ignored by the reducer.
type Action struct {
	Type ActionType

	Room         *chat.Room                  // INIT_ROOM
	Messages     []chat.Message              // LOAD_MESSAGES_SUCCESS, LOAD_MORE_MESSAGES_SUCCESS
	HasMore      bool                        // with Messages
	Err          error                       // LOAD_MESSAGES_ERROR
	Message      *chat.Message               // ADD_MESSAGE, UPDATE_MESSAGE, ADD/CONFIRM_OPTIMISTIC_MESSAGE, SET_REPLY_TARGET
	TempID       string                      // ADD/CONFIRM/REVERT_OPTIMISTIC_MESSAGE
	MessageID    string                      // DELETE_MESSAGE
	Reaction     chat.ReactionUpdatedPayload // UPDATE_REACTION
	Participants []chat.Participant          // SET_PARTICIPANTS
	Value        string                      // SET_INPUT_VALUE
	Flag         bool                        // SET_COMPOSING, SET_AUTO_SCROLL
	Status       ConnectionStatus            // SET_CONNECTION_STATUS
}
