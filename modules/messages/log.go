package messages

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/message"
)

// DefaultTTL is how long a user's message log lives after its last append.
const DefaultTTL = 24 * time.Hour

// DefaultKeyPrefix is the Redis key prefix for message logs.
const DefaultKeyPrefix = "messages:"

// Log stores direct messages as one Redis list per participant.
type Log struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewLog creates a message log.
func NewLog(client *redis.Client, prefix string, ttl time.Duration) *Log {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Log{client: client, prefix: prefix, ttl: ttl}
}

// Append writes msg to the log of both participants in one transaction and
// refreshes their expiry.
func (l *Log) Append(ctx context.Context, msg message.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, uid := range msg.Participants() {
			key := l.prefix + uid
			pipe.RPush(ctx, key, data)
			pipe.Expire(ctx, key, l.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("message append error: %w", err)
	}
	return nil
}

// List returns the messages in a user's log, oldest first. limit <= 0
// returns the whole log; otherwise only the newest limit entries.
func (l *Log) List(ctx context.Context, uid string, limit int) ([]message.Message, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := l.client.LRange(ctx, l.prefix+uid, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("message list error: %w", err)
	}

	msgs := make([]message.Message, 0, len(raw))
	for _, item := range raw {
		var m message.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Ping checks the Redis connection.
func (l *Log) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
