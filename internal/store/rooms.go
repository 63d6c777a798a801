package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/parley/chat-app/internal/chat"
)

// CreateRoom inserts a room and registers its creator as the first
// participant in the same transaction.
func (s *Store) CreateRoom(ctx context.Context, name, creatorID string) (*chat.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: create room begin: %w", err)
	}
	defer tx.Rollback()

	const insertRoom = `
		INSERT INTO rooms (name, created_by)
		VALUES ($1, $2)
		RETURNING id, name, is_active, created_at`

	var room chat.Room
	err = tx.QueryRowContext(ctx, insertRoom, name, creatorID).
		Scan(&room.ID, &room.Name, &room.IsActive, &room.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: create room: %w", err)
	}

	const insertParticipant = `
		INSERT INTO room_participants (room_id, user_id)
		VALUES ($1, $2)`

	if _, err := tx.ExecContext(ctx, insertParticipant, room.ID, creatorID); err != nil {
		return nil, fmt.Errorf("store: create room participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: create room commit: %w", err)
	}

	room.ParticipantCount = 1
	return &room, nil
}

// GetRoom returns a room with its participant count. Inactive rooms are
// returned as-is; the caller decides whether to reject them.
func (s *Store) GetRoom(ctx context.Context, roomID string) (*chat.Room, error) {
	const query = `
		SELECT r.id, r.name, r.is_active, r.created_at,
		       (SELECT COUNT(*) FROM room_participants p WHERE p.room_id = r.id)
		FROM rooms r
		WHERE r.id = $1`

	var room chat.Room
	err := s.db.QueryRowContext(ctx, query, roomID).
		Scan(&room.ID, &room.Name, &room.IsActive, &room.CreatedAt, &room.ParticipantCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get room: %w", err)
	}
	return &room, nil
}

// ListRooms returns all active rooms, newest first, with participant
// counts.
func (s *Store) ListRooms(ctx context.Context) ([]chat.Room, error) {
	const query = `
		SELECT r.id, r.name, r.is_active, r.created_at,
		       (SELECT COUNT(*) FROM room_participants p WHERE p.room_id = r.id)
		FROM rooms r
		WHERE r.is_active = TRUE
		ORDER BY r.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: list rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]chat.Room, 0)
	for rows.Next() {
		var room chat.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.IsActive, &room.CreatedAt, &room.ParticipantCount); err != nil {
			return nil, fmt.Errorf("store: scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list rooms: %w", err)
	}
	return rooms, nil
}
