package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxContentChars is the maximum message length in characters.
const MaxContentChars = 5000

// ValidateContent checks that message content meets the requirements
// enforced on send: non-blank, at most MaxContentChars characters, and
// valid UTF-8.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("message content is empty")
	}
	if utf8.RuneCountInString(content) > MaxContentChars {
		return fmt.Errorf("message exceeds %d character limit", MaxContentChars)
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("message contains invalid UTF-8")
	}
	return nil
}

// ValidMessageType reports whether t is one of the accepted message types.
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageTypeText, MessageTypeEmoji, MessageTypeSystem:
		return true
	}
	return false
}

// ValidReactionType reports whether t is an accepted reaction type.
func ValidReactionType(t ReactionType) bool {
	return t == ReactionTypeLike
}
