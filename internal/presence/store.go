// Package presence tracks which sessions are currently connected to
// each room, backed by Redis. Membership is heartbeat-based: every
// member holds a per-session key with a TTL, and the room's set is
// pruned against those keys on read, so crashed gateways cannot leak
// phantom presence.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// RoomPrefix is the Redis key prefix for per-room presence sets.
	RoomPrefix = "presence:room:"

	// MemberPrefix is the Redis key prefix for per-session liveness keys.
	MemberPrefix = "presence:member:"

	// MemberTTL is how long a session stays present without a heartbeat.
	MemberTTL = 90 * time.Second
)

// Store manages room presence in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a presence store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Join marks a session present in a room and starts its liveness TTL.
func (s *Store) Join(ctx context.Context, roomID, sessionID string) error {
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, RoomPrefix+roomID, sessionID)
	pipe.Set(ctx, memberKey(roomID, sessionID), "1", MemberTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: join room %s: %w", roomID, err)
	}
	return nil
}

// Leave removes a session from a room's presence set.
func (s *Store) Leave(ctx context.Context, roomID, sessionID string) error {
	pipe := s.client.Pipeline()
	pipe.SRem(ctx, RoomPrefix+roomID, sessionID)
	pipe.Del(ctx, memberKey(roomID, sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: leave room %s: %w", roomID, err)
	}
	return nil
}

// Heartbeat refreshes a session's liveness TTL.
func (s *Store) Heartbeat(ctx context.Context, roomID, sessionID string) error {
	ok, err := s.client.Expire(ctx, memberKey(roomID, sessionID), MemberTTL).Result()
	if err != nil {
		return fmt.Errorf("presence: heartbeat room %s: %w", roomID, err)
	}
	if !ok {
		// The liveness key expired; re-join so the set stays accurate.
		return s.Join(ctx, roomID, sessionID)
	}
	return nil
}

// Count returns the number of live sessions in a room, pruning members
// whose liveness keys have expired.
func (s *Store) Count(ctx context.Context, roomID string) (int, error) {
	members, err := s.client.SMembers(ctx, RoomPrefix+roomID).Result()
	if err != nil {
		return 0, fmt.Errorf("presence: members of room %s: %w", roomID, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	live := 0
	var stale []interface{}
	for _, m := range members {
		exists, err := s.client.Exists(ctx, memberKey(roomID, m)).Result()
		if err != nil {
			return 0, fmt.Errorf("presence: check member %s: %w", m, err)
		}
		if exists > 0 {
			live++
		} else {
			stale = append(stale, m)
		}
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, RoomPrefix+roomID, stale...).Err(); err != nil {
			return live, fmt.Errorf("presence: prune room %s: %w", roomID, err)
		}
	}
	return live, nil
}

func memberKey(roomID, sessionID string) string {
	return MemberPrefix + roomID + ":" + sessionID
}
