package store

import (
	"context"
	"fmt"

	"github.com/parley/chat-app/internal/chat"
)

// JoinRoom adds a user to a room's participant list. Joining twice is
// not an error; alreadyJoined reports whether the membership predated
// this call. Participants are never removed.
func (s *Store) JoinRoom(ctx context.Context, roomID, userID string) (alreadyJoined bool, err error) {
	const query = `
		INSERT INTO room_participants (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, user_id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, roomID, userID)
	if err != nil {
		return false, fmt.Errorf("store: join room: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: join room: %w", err)
	}
	return n == 0, nil
}

// ListParticipants returns a room's participants in join order with
// their user records attached.
func (s *Store) ListParticipants(ctx context.Context, roomID string) ([]chat.Participant, error) {
	const query = `
		SELECT rp.id, rp.user_id, rp.joined_at, u.id, u.nickname, u.email
		FROM room_participants rp
		JOIN users u ON u.id = rp.user_id
		WHERE rp.room_id = $1
		ORDER BY rp.joined_at`

	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("store: list participants: %w", err)
	}
	defer rows.Close()

	participants := make([]chat.Participant, 0)
	for rows.Next() {
		var p chat.Participant
		if err := rows.Scan(&p.ID, &p.UserID, &p.JoinedAt, &p.User.ID, &p.User.Nickname, &p.User.Email); err != nil {
			return nil, fmt.Errorf("store: scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list participants: %w", err)
	}
	return participants, nil
}

// IsParticipant reports whether a user has joined a room.
func (s *Store) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM room_participants
			WHERE room_id = $1 AND user_id = $2
		)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("store: is participant: %w", err)
	}
	return exists, nil
}
