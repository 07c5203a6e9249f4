package transcript

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKey returns the Redis key for a session's transcript list.
func redisKey(sessionID string) string {
	return "session:" + sessionID + ":transcript"
}

// RedisStore persists transcripts in Redis using a list per session.
type RedisStore struct {
	client  redis.Cmdable
	maxSize int64
}

// NewRedisStore creates a RedisStore retaining up to maxSize messages per session.
func NewRedisStore(client redis.Cmdable, maxSize int) *RedisStore {
	return &RedisStore{
		client:  client,
		maxSize: int64(maxSize),
	}
}

// Append adds a message to the session's list in Redis, trimming to maxSize.
func (s *RedisStore) Append(msg *Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("redis: failed to marshal transcript message: %v", err)
		return
	}

	key := redisKey(msg.SessionID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -s.maxSize, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("redis: failed to append transcript message: %v", err)
	}
}

// Recent returns the last n messages for a session, oldest first.
func (s *RedisStore) Recent(sessionID string, n int) []*Message {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	vals, err := s.client.LRange(ctx, redisKey(sessionID), int64(-n), -1).Result()
	if err != nil {
		log.Printf("redis: failed to read transcript: %v", err)
		return nil
	}

	msgs := make([]*Message, 0, len(vals))
	for _, v := range vals {
		var m Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			continue
		}
		msgs = append(msgs, &m)
	}
	return msgs
}

// DeleteSession removes all stored messages for a session.
func (s *RedisStore) DeleteSession(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.client.Del(ctx, redisKey(sessionID)).Err(); err != nil {
		log.Printf("redis: failed to delete transcript: %v", err)
	}
}

// Count returns the number of stored messages for a session.
func (s *RedisStore) Count(sessionID string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := s.client.LLen(ctx, redisKey(sessionID)).Result()
	if err != nil {
		log.Printf("redis: failed to count transcript: %v", err)
		return 0
	}
	return int(n)
}
