// Package cache publishes game action records to Redis so a historian
// process can rebuild any finished game move by move.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rdb is the shared Redis client. It stays nil when Redis is not configured;
// callers must nil-check before publishing.
var Rdb *redis.Client

// InitRedis sets up the shared client and verifies connectivity.
func InitRedis(ctx context.Context, addr, password string, db int) error {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	Rdb = client
	return nil
}

// GameActionRecord is one entry in a session's action history.
type GameActionRecord struct {
	SessionID   uuid.UUID              `json:"sessionId"`
	ActionIndex int                    `json:"actionIndex"`
	ActorID     uuid.UUID              `json:"actorId"` // Nil for session-level events.
	ActionType  string                 `json:"actionType"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Timestamp   int64                  `json:"timestamp"`
}

// actionKey returns the Redis list key holding a session's history.
func actionKey(sessionID uuid.UUID) string {
	return "durak:actions:" + sessionID.String()
}

// PublishGameAction appends the record to the session's action list.
func PublishGameAction(ctx context.Context, rec GameActionRecord) error {
	if Rdb == nil {
		return fmt.Errorf("redis client not initialized")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	return Rdb.RPush(ctx, actionKey(rec.SessionID), data).Err()
}

// GameActionHistory returns a session's recorded actions in order.
func GameActionHistory(ctx context.Context, sessionID uuid.UUID) ([]GameActionRecord, error) {
	if Rdb == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}
	raw, err := Rdb.LRange(ctx, actionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read action history: %w", err)
	}
	records := make([]GameActionRecord, 0, len(raw))
	for _, item := range raw {
		var rec GameActionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode action record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
