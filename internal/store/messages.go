package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/parley/chat-app/internal/chat"
)

// messageColumns is the SELECT list shared by the message queries:
// the message row, its author, and the parent-message preview.
const messageColumns = `
	m.id, m.room_id, m.user_id, m.content, m.type,
	m.parent_message_id, m.is_deleted, m.created_at, m.updated_at,
	u.id, u.nickname, u.email,
	p.id, p.content, p.user_id, p.is_deleted, pu.nickname`

const messageJoins = `
	FROM messages m
	JOIN users u ON u.id = m.user_id
	LEFT JOIN messages p ON p.id = m.parent_message_id
	LEFT JOIN users pu ON pu.id = p.user_id`

// ListMessages returns one page of a room's messages, newest first,
// with authors, parent previews, and reactions attached. hasMore is
// true when older messages exist beyond this page.
func (s *Store) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]chat.Message, bool, int, error) {
	const countQuery = `SELECT COUNT(*) FROM messages WHERE room_id = $1`

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, roomID).Scan(&total); err != nil {
		return nil, false, 0, fmt.Errorf("store: count messages: %w", err)
	}

	query := `SELECT` + messageColumns + messageJoins + `
	WHERE m.room_id = $1
	ORDER BY m.created_at DESC
	LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, roomID, limit, offset)
	if err != nil {
		return nil, false, 0, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, false, 0, err
		}
		messages = append(messages, *msg)
		ids = append(ids, msg.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, false, 0, fmt.Errorf("store: list messages: %w", err)
	}

	if err := s.attachReactions(ctx, messages, ids); err != nil {
		return nil, false, 0, err
	}

	hasMore := total > offset+limit
	return messages, hasMore, total, nil
}

// InsertMessage stores a new message and returns the fully hydrated row
// (author, parent preview, empty reaction list).
func (s *Store) InsertMessage(ctx context.Context, roomID, userID, content string, msgType chat.MessageType, parentMessageID *string) (*chat.Message, error) {
	const insert = `
		INSERT INTO messages (room_id, user_id, content, type, parent_message_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id string
	err := s.db.QueryRowContext(ctx, insert, roomID, userID, content, msgType, parentMessageID).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("store: insert message: %w", err)
	}

	return s.GetMessage(ctx, roomID, id)
}

// GetMessage returns one message with author and parent preview. The
// reaction list is attached so the row matches what ListMessages returns.
func (s *Store) GetMessage(ctx context.Context, roomID, messageID string) (*chat.Message, error) {
	query := `SELECT` + messageColumns + messageJoins + `
	WHERE m.id = $1 AND m.room_id = $2`

	row := s.db.QueryRowContext(ctx, query, messageID, roomID)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	msgs := []chat.Message{*msg}
	if err := s.attachReactions(ctx, msgs, []string{msg.ID}); err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

// SoftDeleteMessage marks a message deleted. The row is kept so replies
// referencing it stay intact.
func (s *Store) SoftDeleteMessage(ctx context.Context, roomID, messageID string) error {
	const query = `
		UPDATE messages
		SET is_deleted = TRUE, updated_at = NOW()
		WHERE id = $1 AND room_id = $2`

	res, err := s.db.ExecContext(ctx, query, messageID, roomID)
	if err != nil {
		return fmt.Errorf("store: soft delete message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// attachReactions loads the reactions for the given message ids in one
// query and distributes them onto the message slice.
func (s *Store) attachReactions(ctx context.Context, messages []chat.Message, ids []string) error {
	for i := range messages {
		messages[i].Reactions = []chat.Reaction{}
	}
	if len(ids) == 0 {
		return nil
	}

	const query = `
		SELECT id, message_id, user_id, reaction_type, created_at
		FROM message_reactions
		WHERE message_id = ANY($1)
		ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("store: load reactions: %w", err)
	}
	defer rows.Close()

	byMessage := make(map[string][]chat.Reaction, len(ids))
	for rows.Next() {
		var r chat.Reaction
		if err := rows.Scan(&r.ID, &r.MessageID, &r.UserID, &r.Type, &r.CreatedAt); err != nil {
			return fmt.Errorf("store: scan reaction: %w", err)
		}
		byMessage[r.MessageID] = append(byMessage[r.MessageID], r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: load reactions: %w", err)
	}

	for i := range messages {
		if rs, ok := byMessage[messages[i].ID]; ok {
			messages[i].Reactions = rs
		}
	}
	return nil
}

// rowScanner lets scanMessage work with both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMessage decodes one joined message row. Soft-deleted messages
// (and soft-deleted parents) come back with empty content: the deletion
// marker is the only thing a deleted message exposes.
func scanMessage(row rowScanner) (*chat.Message, error) {
	var (
		msg             chat.Message
		user            chat.User
		parentID        sql.NullString
		parentContent   sql.NullString
		parentUserID    sql.NullString
		parentDeleted   sql.NullBool
		parentNickname  sql.NullString
		parentMessageID sql.NullString
	)

	err := row.Scan(
		&msg.ID, &msg.RoomID, &msg.UserID, &msg.Content, &msg.Type,
		&parentMessageID, &msg.IsDeleted, &msg.CreatedAt, &msg.UpdatedAt,
		&user.ID, &user.Nickname, &user.Email,
		&parentID, &parentContent, &parentUserID, &parentDeleted, &parentNickname,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan message: %w", err)
	}

	msg.User = &user
	if parentMessageID.Valid {
		id := parentMessageID.String
		msg.ParentMessageID = &id
	}
	if parentID.Valid {
		preview := &chat.ParentPreview{
			ID:        parentID.String,
			Content:   parentContent.String,
			UserID:    parentUserID.String,
			IsDeleted: parentDeleted.Bool,
			Nickname:  parentNickname.String,
		}
		if preview.IsDeleted {
			preview.Content = ""
		}
		msg.ParentMessage = preview
	}
	if msg.IsDeleted {
		msg.Content = ""
	}
	return &msg, nil
}
