package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/parley/chat-app/internal/chat"
)

// ToggleReaction flips a user's reaction on a message: removed if
// present, added otherwise. The returned aggregate is re-counted inside
// the same transaction so concurrent toggles from different users
// converge on the database's view, never on client arithmetic.
func (s *Store) ToggleReaction(ctx context.Context, messageID, userID string, reactionType chat.ReactionType) (isLiked bool, totalLikes int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("store: toggle reaction begin: %w", err)
	}
	defer tx.Rollback()

	const find = `
		SELECT id
		FROM message_reactions
		WHERE message_id = $1 AND user_id = $2 AND reaction_type = $3`

	var existingID string
	err = tx.QueryRowContext(ctx, find, messageID, userID, reactionType).Scan(&existingID)
	switch {
	case err == nil:
		const del = `DELETE FROM message_reactions WHERE id = $1`
		if _, err := tx.ExecContext(ctx, del, existingID); err != nil {
			return false, 0, fmt.Errorf("store: remove reaction: %w", err)
		}
		isLiked = false
	case errors.Is(err, sql.ErrNoRows):
		const ins = `
			INSERT INTO message_reactions (message_id, user_id, reaction_type)
			VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, ins, messageID, userID, reactionType); err != nil {
			return false, 0, fmt.Errorf("store: add reaction: %w", err)
		}
		isLiked = true
	default:
		return false, 0, fmt.Errorf("store: find reaction: %w", err)
	}

	const count = `
		SELECT COUNT(*)
		FROM message_reactions
		WHERE message_id = $1 AND reaction_type = $2`

	if err := tx.QueryRowContext(ctx, count, messageID, reactionType).Scan(&totalLikes); err != nil {
		return false, 0, fmt.Errorf("store: count reactions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("store: toggle reaction commit: %w", err)
	}
	return isLiked, totalLikes, nil
}
