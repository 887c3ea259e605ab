package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/SWM-FIRE/modoco-backend-sub000/domain/session"
)

// DefaultTTL is how long a session lives after its last write.
const DefaultTTL = 24 * time.Hour

// DefaultKeyPrefix is the Redis key prefix for sessions.
const DefaultKeyPrefix = "session:"

// Store keeps sessions as Redis hashes. Writes merge fields and refresh the
// expiry; an expired session is absent.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore creates a session store.
func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// Find returns the session stored under id. ok is false when it is absent
// or expired.
func (s *Store) Find(ctx context.Context, id string) (*domain.Session, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+id).Result()
	if err != nil {
		return nil, false, fmt.Errorf("session find error: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	return domain.FromFields(fields), true, nil
}

// Save writes only the fields present in update and resets the expiry.
func (s *Store) Save(ctx context.Context, id string, update domain.Update) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if update.Status != nil && !update.Status.Valid() {
		return fmt.Errorf("invalid session status %q", *update.Status)
	}

	key := s.prefix + id
	fields := update.Fields()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields)
		}
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session save error: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of a session.
func (s *Store) TTL(ctx context.Context, id string) (time.Duration, error) {
	return s.client.TTL(ctx, s.prefix+id).Result()
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
