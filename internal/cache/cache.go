// internal/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActionRecord is one entry in a room's action history.
type ActionRecord struct {
	RoomID      string                 `json:"roomId"`
	RoomCode    string                 `json:"roomCode"`
	ActionIndex int                    `json:"actionIndex"`
	ActorID     string                 `json:"actorId,omitempty"` // empty for system actions (timeouts, expiry)
	ActionType  string                 `json:"actionType"`
	Payload     map[string]interface{} `json:"payload"`
	Timestamp   int64                  `json:"timestamp"`
}

const (
	keyPrefix      = "whot:actions:"
	defaultMaxLen  = 2000
	defaultHistTTL = 24 * time.Hour
)

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// RedisActionLog appends action records to a capped list per room.
type RedisActionLog struct {
	rdb    *redis.Client
	maxLen int64
	ttl    time.Duration
}

func NewRedisActionLog(rdb *redis.Client) *RedisActionLog {
	return &RedisActionLog{rdb: rdb, maxLen: defaultMaxLen, ttl: defaultHistTTL}
}

func historyKey(roomID string) string { return keyPrefix + roomID }

// Publish pushes rec onto the room's history, trimming the oldest entries
// and refreshing the expiry.
func (l *RedisActionLog) Publish(ctx context.Context, rec ActionRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	key := historyKey(rec.RoomID)
	pipe := l.rdb.TxPipeline()
	pipe.RPush(ctx, key, b)
	pipe.LTrim(ctx, key, -l.maxLen, -1)
	pipe.Expire(ctx, key, l.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish action %d for room %s: %w", rec.ActionIndex, rec.RoomCode, err)
	}
	return nil
}

// History returns the stored records of a room, oldest first.
func (l *RedisActionLog) History(ctx context.Context, roomID string) ([]ActionRecord, error) {
	raw, err := l.rdb.LRange(ctx, historyKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	out := make([]ActionRecord, 0, len(raw))
	for _, s := range raw {
		var rec ActionRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
