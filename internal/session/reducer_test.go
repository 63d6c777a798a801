package session

import (
	"errors"
	"testing"
	"time"

	"github.com/parley/chat-app/internal/chat"
)

func msg(id string) chat.Message {
	now := time.Unix(1700000000, 0)
	return chat.Message{
		ID:        id,
		RoomID:    "room-1",
		UserID:    "user-1",
		Content:   "content of " + id,
		Type:      chat.MessageTypeText,
		Reactions: []chat.Reaction{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func msgPtr(id string) *chat.Message {
	m := msg(id)
	return &m
}

func ids(items []chat.Message) []string {
	out := make([]string, len(items))
	for i, m := range items {
		out[i] = m.ID
	}
	return out
}

func TestAddMessageDedupByID(t *testing.T) {
	state := NewState()
	state = Reduce(state, Action{Type: ActionAddMessage, Message: msgPtr("m1")})
	state = Reduce(state, Action{Type: ActionAddMessage, Message: msgPtr("m2")})

	// A broadcast echo of m1 must not produce a second entry.
	state = Reduce(state, Action{Type: ActionAddMessage, Message: msgPtr("m1")})

	count := 0
	for _, m := range state.Messages.Items {
		if m.ID == "m1" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one m1, got %d", count)
	}
	if len(state.Messages.Items) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(state.Messages.Items))
	}
	// Newest-first: the later add sits at the head.
	if state.Messages.Items[0].ID != "m2" {
		t.Errorf("expected m2 at head, got %s", state.Messages.Items[0].ID)
	}
}

func TestConfirmOptimisticReplacesInPlace(t *testing.T) {
	state := NewState()
	state = Reduce(state, Action{Type: ActionAddMessage, Message: msgPtr("m1")})
	state = Reduce(state, Action{Type: ActionAddOptimisticMessage, TempID: "temp-1", Message: msgPtr("temp-1")})
	state = Reduce(state, Action{Type: ActionAddMessage, Message: msgPtr("m2")})

	// temp-1 currently sits in the middle.
	confirmed := msgPtr("server-1")
	state = Reduce(state, Action{Type: ActionConfirmOptimisticMessage, TempID: "temp-1", Message: confirmed})

	got := ids(state.Messages.Items)
	want := []string{"m2", "server-1", "m1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if _, ok := state.Optimistic["temp-1"]; ok {
		t.Error("pending map should no longer contain temp-1")
	}
}

func TestConfirmOptimisticMissingTempIsNoop(t *testing.T) {
	state := NewState()
	state = Reduce(state, Action{Type: ActionAddMessage, Message: msgPtr("m1")})

	next := Reduce(state, Action{Type: ActionConfirmOptimisticMessage, TempID: "temp-gone", Message: msgPtr("server-1")})
	if len(next.Messages.Items) != 1 || next.Messages.Items[0].ID != "m1" {
		t.Errorf("confirm of a missing temp id must not change the list: %v", ids(next.Messages.Items))
	}
}

func TestRevertOptimisticRoundTrip(t *testing.T) {
	state := NewState()
	state = Reduce(state, Action{Type: ActionAddMessage, Message: msgPtr("m1")})

	before := state
	state = Reduce(state, Action{Type: ActionAddOptimisticMessage, TempID: "temp-1", Message: msgPtr("temp-1")})
	if _, ok := state.Optimistic["temp-1"]; !ok {
		t.Fatal("pending map should contain temp-1 after optimistic add")
	}
	state = Reduce(state, Action{Type: ActionRevertOptimisticMessage, TempID: "temp-1"})

	if len(state.Messages.Items) != len(before.Messages.Items) {
		t.Fatalf("expected %d messages after revert, got %d", len(before.Messages.Items), len(state.Messages.Items))
	}
	if state.Messages.Items[0].ID != "m1" {
		t.Errorf("expected m1 to survive the revert, got %s", state.Messages.Items[0].ID)
	}
	if len(state.Optimistic) != 0 {
		t.Errorf("expected empty pending map, got %d entries", len(state.Optimistic))
	}
}

func TestSendFailureScenario(t *testing.T) {
	// User sends while offline; the send fails; no trace may remain.
	state := NewState()
	tempID := "temp-1700000000000"
	state = Reduce(state, Action{Type: ActionAddOptimisticMessage, TempID: tempID, Message: msgPtr(tempID)})
	state = Reduce(state, Action{Type: ActionRevertOptimisticMessage, TempID: tempID})

	if i := state.findMessage(tempID); i >= 0 {
		t.Errorf("list must not contain %s after revert", tempID)
	}
	if len(state.Optimistic) != 0 {
		t.Errorf("pending map must be empty, got %d entries", len(state.Optimistic))
	}
}

func TestDeleteMessageMarksAndScrubs(t *testing.T) {
	state := NewState()
	state = Reduce(state, Action{Type: ActionAddMessage, Message: msgPtr("m1")})
	state = Reduce(state, Action{Type: ActionDeleteMessage, MessageID: "m1"})

	if len(state.Messages.Items) != 1 {
		t.Fatalf("soft delete must keep the entry, got %d items", len(state.Messages.Items))
	}
	if !state.Messages.Items[0].IsDeleted {
		t.Error("expected isDeleted=true")
	}
	if state.Messages.Items[0].Content != "" {
		t.Error("expected content scrubbed after delete")
	}
}

func TestDeleteMessageMissingIsNoop(t *testing.T) {
	state := NewState()
	state = Reduce(state, Action{Type: ActionAddMessage, Message: msgPtr("m1")})

	next := Reduce(state, Action{Type: ActionDeleteMessage, MessageID: "missing"})
	if len(next.Messages.Items) != 1 || next.Messages.Items[0].IsDeleted {
		t.Error("deleting an absent message must leave the list unchanged")
	}
}

func TestLoadMoreAppendsWithoutReordering(t *testing.T) {
	state := NewState()
	state = Reduce(state, Action{
		Type:     ActionLoadMessagesSuccess,
		Messages: []chat.Message{msg("m3"), msg("m2")},
		HasMore:  true,
	})
	state = Reduce(state, Action{
		Type:     ActionLoadMoreMessagesSuccess,
		Messages: []chat.Message{msg("m1"), msg("m0")},
		HasMore:  false,
	})

	got := ids(state.Messages.Items)
	want := []string{"m3", "m2", "m1", "m0"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if state.Messages.HasMore {
		t.Error("expected hasMore=false after final page")
	}
	if state.Messages.IsLoading {
		t.Error("expected isLoading=false after page load")
	}
}

func TestReactionAggregateLastWriteWins(t *testing.T) {
	state := NewState()
	state = Reduce(state, Action{Type: ActionAddMessage, Message: msgPtr("m1")})

	state = Reduce(state, Action{Type: ActionUpdateReaction, Reaction: chat.ReactionUpdatedPayload{
		MessageID: "m1", IsLiked: true, TotalLikes: 1, UserID: "user-2",
	}})
	state = Reduce(state, Action{Type: ActionUpdateReaction, Reaction: chat.ReactionUpdatedPayload{
		MessageID: "m1", IsLiked: false, TotalLikes: 0, UserID: "user-2",
	}})

	agg, ok := state.Reactions["m1"]
	if !ok {
		t.Fatal("expected a reaction aggregate for m1")
	}
	if agg.IsLiked || agg.TotalLikes != 0 {
		t.Errorf("aggregate must match the second authoritative response, got %+v", agg)
	}
}

func TestReactionForUnknownMessageIsNoop(t *testing.T) {
	state := NewState()
	next := Reduce(state, Action{Type: ActionUpdateReaction, Reaction: chat.ReactionUpdatedPayload{
		MessageID: "not-loaded", IsLiked: true, TotalLikes: 3, UserID: "user-2",
	}})
	if _, ok := next.Reactions["not-loaded"]; ok {
		t.Error("reaction broadcast for an unloaded message must be a no-op")
	}
}

func TestUnknownActionIsIdentity(t *testing.T) {
	state := NewState()
	state = Reduce(state, Action{Type: ActionAddMessage, Message: msgPtr("m1")})

	next := Reduce(state, Action{Type: ActionType("SOMETHING_ELSE")})
	if len(next.Messages.Items) != 1 || next.Messages.Items[0].ID != "m1" {
		t.Error("unknown actions must return the state unchanged")
	}
}

func TestLoadMessagesErrorRecorded(t *testing.T) {
	state := NewState()
	state = Reduce(state, Action{Type: ActionLoadMessages})
	if !state.Messages.IsLoading {
		t.Error("expected isLoading=true during load")
	}

	loadErr := errors.New("fetch failed")
	state = Reduce(state, Action{Type: ActionLoadMessagesError, Err: loadErr})
	if state.Messages.IsLoading {
		t.Error("expected isLoading=false after error")
	}
	if !errors.Is(state.Messages.Err, loadErr) {
		t.Error("expected the load error to be recorded")
	}
}

func TestConnectionTransitions(t *testing.T) {
	state := NewState()
	if state.Connection.Status != StatusIdle {
		t.Fatalf("expected initial status idle, got %s", state.Connection.Status)
	}

	state = Reduce(state, Action{Type: ActionSetConnectionStatus, Status: StatusConnecting})
	state = Reduce(state, Action{Type: ActionSetConnectionStatus, Status: StatusConnected})
	if state.Connection.Status != StatusConnected {
		t.Errorf("expected connected, got %s", state.Connection.Status)
	}

	state = Reduce(state, Action{Type: ActionIncrementReconnectAttempt})
	state = Reduce(state, Action{Type: ActionIncrementReconnectAttempt})
	if state.Connection.ReconnectAttempt != 2 {
		t.Errorf("expected 2 reconnect attempts, got %d", state.Connection.ReconnectAttempt)
	}
	state = Reduce(state, Action{Type: ActionResetReconnectAttempt})
	if state.Connection.ReconnectAttempt != 0 {
		t.Errorf("expected reset to 0, got %d", state.Connection.ReconnectAttempt)
	}
}

func TestInputAndUITransitions(t *testing.T) {
	state := NewState()
	state = Reduce(state, Action{Type: ActionSetInputValue, Value: "hello"})
	state = Reduce(state, Action{Type: ActionSetReplyTarget, Message: msgPtr("m1")})
	state = Reduce(state, Action{Type: ActionSetComposing, Flag: true})

	if state.Input.Value != "hello" || state.Input.ReplyTarget == nil || !state.Input.IsComposing {
		t.Fatalf("unexpected input state: %+v", state.Input)
	}

	state = Reduce(state, Action{Type: ActionClearInput})
	if state.Input.Value != "" || state.Input.ReplyTarget != nil {
		t.Error("clear input must drop both the draft and the reply target")
	}
	// Composition flag is independent of the draft.
	if !state.Input.IsComposing {
		t.Error("clear input must not touch the composition flag")
	}

	state = Reduce(state, Action{Type: ActionToggleEmojiPicker})
	if !state.UI.ShowEmojiPicker {
		t.Error("expected emoji picker toggled on")
	}
	state = Reduce(state, Action{Type: ActionToggleEmojiPicker})
	if state.UI.ShowEmojiPicker {
		t.Error("expected emoji picker toggled off")
	}
}

func TestReducerDoesNotMutateInput(t *testing.T) {
	state := NewState()
	state = Reduce(state, Action{Type: ActionAddMessage, Message: msgPtr("m1")})

	snapshot := ids(state.Messages.Items)
	_ = Reduce(state, Action{Type: ActionAddMessage, Message: msgPtr("m2")})
	_ = Reduce(state, Action{Type: ActionDeleteMessage, MessageID: "m1"})

	after := ids(state.Messages.Items)
	if len(after) != len(snapshot) || after[0] != snapshot[0] {
		t.Error("Reduce must not mutate its input state")
	}
	if state.Messages.Items[0].IsDeleted {
		t.Error("delete on a derived state must not leak into the original")
	}
}

func TestResetState(t *testing.T) {
	state := NewState()
	state = Reduce(state, Action{Type: ActionAddMessage, Message: msgPtr("m1")})
	state = Reduce(state, Action{Type: ActionSetConnectionStatus, Status: StatusConnected})

	state = Reduce(state, Action{Type: ActionResetState})
	if len(state.Messages.Items) != 0 {
		t.Error("reset must clear messages")
	}
	if state.Connection.Status != StatusIdle {
		t.Error("reset must return the connection to idle")
	}
	if !state.UI.AutoScroll {
		t.Error("reset must restore autoscroll default")
	}
}
