package session

import "github.com/parley/chat-app/internal/chat"

// Reduce is the pure transition function for room session state. It
// performs no I/O and never mutates its input; unknown action types
// return the state unchanged.
func Reduce(state State, action Action) State {
	switch action.Type {
	case ActionInitRoom:
		next := state
		next.Room = action.Room
		return next

	case ActionResetState:
		return NewState()

	case ActionLoadMessages:
		next := state
		next.Messages.IsLoading = true
		next.Messages.Err = nil
		return next

	case ActionLoadMessagesSuccess:
		next := state
		next.Messages = MessageList{
			Items:   append([]chat.Message(nil), action.Messages...),
			HasMore: action.HasMore,
		}
		return next

	case ActionLoadMessagesError:
		next := state
		next.Messages.IsLoading = false
		next.Messages.Err = action.Err
		return next

	case ActionLoadMoreMessages:
		next := state
		next.Messages.IsLoading = true
		return next

	case ActionLoadMoreMessagesSuccess:
		// Older pages append after everything already held; the
		// newest-first order of earlier items is never disturbed.
		next := state.clone()
		next.Messages.Items = append(next.Messages.Items, action.Messages...)
		next.Messages.HasMore = action.HasMore
		next.Messages.IsLoading = false
		next.Messages.Err = nil
		return next

	case ActionAddMessage:
		// Dedup by id before insertion: a broadcast echo of a message
		// this session already holds must not produce a duplicate.
		if action.Message == nil || state.findMessage(action.Message.ID) >= 0 {
			return state
		}
		next := state.clone()
		next.Messages.Items = append([]chat.Message{*action.Message}, next.Messages.Items...)
		return next

	case ActionUpdateMessage:
		if action.Message == nil {
			return state
		}
		i := state.findMessage(action.Message.ID)
		if i < 0 {
			return state
		}
		next := state.clone()
		next.Messages.Items[i] = *action.Message
		return next

	case ActionDeleteMessage:
		i := state.findMessage(action.MessageID)
		if i < 0 {
			return state
		}
		next := state.clone()
		next.Messages.Items[i].IsDeleted = true
		// Soft delete keeps the entry for replies that reference it,
		// but the content itself is scrubbed from state.
		next.Messages.Items[i].Content = ""
		return next

	case ActionAddOptimisticMessage:
		if action.Message == nil || action.TempID == "" {
			return state
		}
		// List insertion and pending-map record happen in the same
		// transition; they are never updated independently.
		next := state.clone()
		next.Messages.Items = append([]chat.Message{*action.Message}, next.Messages.Items...)
		next.Optimistic[action.TempID] = *action.Message
		return next

	case ActionConfirmOptimisticMessage:
		if action.Message == nil {
			return state
		}
		i := state.findMessage(action.TempID)
		if i < 0 {
			return state // already removed or raced; nothing to confirm
		}
		next := state.clone()
		next.Messages.Items[i] = *action.Message
		delete(next.Optimistic, action.TempID)
		return next

	case ActionRevertOptimisticMessage:
		i := state.findMessage(action.TempID)
		next := state.clone()
		if i >= 0 {
			next.Messages.Items = append(next.Messages.Items[:i], next.Messages.Items[i+1:]...)
		}
		delete(next.Optimistic, action.TempID)
		return next

	case ActionUpdateReaction:
		// Apply the server aggregate as-is; a broadcast for a message
		// this session has not loaded yet is a no-op.
		if state.findMessage(action.Reaction.MessageID) < 0 {
			return state
		}
		next := state.clone()
		next.Reactions[action.Reaction.MessageID] = ReactionAggregate{
			IsLiked:    action.Reaction.IsLiked,
			TotalLikes: action.Reaction.TotalLikes,
			UserID:     action.Reaction.UserID,
		}
		return next

	case ActionSetInputValue:
		next := state
		next.Input.Value = action.Value
		return next

	case ActionSetReplyTarget:
		next := state
		next.Input.ReplyTarget = action.Message
		return next

	case ActionClearReplyTarget:
		next := state
		next.Input.ReplyTarget = nil
		return next

	case ActionSetComposing:
		next := state
		next.Input.IsComposing = action.Flag
		return next

	case ActionClearInput:
		next := state
		next.Input.Value = ""
		next.Input.ReplyTarget = nil
		return next

	case ActionSetAutoScroll:
		next := state
		next.UI.AutoScroll = action.Flag
		return next

	case ActionToggleEmojiPicker:
		next := state
		next.UI.ShowEmojiPicker = !state.UI.ShowEmojiPicker
		return next

	case ActionSetParticipants:
		next := state.clone()
		next.Participants = Participants{
			List:  append([]chat.Participant(nil), action.Participants...),
			Count: len(action.Participants),
		}
		return next

	case ActionSetConnectionStatus:
		next := state
		next.Connection.Status = action.Status
		return next

	case ActionIncrementReconnectAttempt:
		next := state
		next.Connection.ReconnectAttempt++
		return next

	case ActionResetReconnectAttempt:
		next := state
		next.Connection.ReconnectAttempt = 0
		return next

	default:
		return state
	}
}
