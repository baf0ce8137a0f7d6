package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisPersistence stores session snapshots as JSON values keyed by bot ID.
// Snapshots are best-effort: the in-process store stays authoritative and a
// lost write only costs carry-over context after a restart.
type redisPersistence struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPersistence wraps a redis client as a session Persistence backend.
// ttl <= 0 defaults to 24 hours.
func NewRedisPersistence(client *redis.Client, ttl time.Duration) Persistence {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisPersistence{client: client, ttl: ttl}
}

func (r *redisPersistence) key(botID string) string { return "voice-session:" + botID }

func (r *redisPersistence) Save(ctx context.Context, sess *ConversationSession) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(sess.BotID), b, r.ttl).Err()
}

func (r *redisPersistence) Load(ctx context.Context, botID string) (*ConversationSession, error) {
	val, err := r.client.Get(ctx, r.key(botID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess ConversationSession
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, err
	}
	// Refresh TTL on read so an active conversation never expires mid-call.
	_ = r.client.Expire(ctx, r.key(botID), r.ttl).Err()
	return &sess, nil
}

func (r *redisPersistence) Close() error { return r.client.Close() }
