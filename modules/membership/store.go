// Package membership is the shared room membership store. Every process
// reads and writes the same Redis records, so occupancy and capacity are
// consistent across horizontally scaled instances.
package membership

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
)

// DefaultKeyPrefix is the Redis key prefix for membership records.
const DefaultKeyPrefix = "membership:room:"

// Loader fetches a room record from the metadata collaborator when the
// shared record is missing.
type Loader interface {
	LoadRecord(ctx context.Context, roomID string) (*room.Record, error)
}

// ClampFunc is called when an occupancy write had to be clamped.
type ClampFunc func(roomID string, attempted, stored int)

// reserveScript admits one member when a slot is free.
// Returns {status, current, total}: status -1 missing, 0 full, 1 admitted.
var reserveScript = redis.NewScript(`
	local total = tonumber(redis.call('HGET', KEYS[1], 'total'))
	if not total then
		return {-1, 0, 0}
	end
	local current = tonumber(redis.call('HGET', KEYS[1], 'current') or '0')
	if current >= total then
		return {0, current, total}
	end
	current = redis.call('HINCRBY', KEYS[1], 'current', 1)
	return {1, current, total}
`)

// adjustScript stores a caller computed occupancy clamped to [0, total].
// Returns {status, stored, total, clamped}: status -1 missing, 1 stored.
var adjustScript = redis.NewScript(`
	local total = tonumber(redis.call('HGET', KEYS[1], 'total'))
	if not total then
		return {-1, 0, 0, 0}
	end
	local want = tonumber(ARGV[1])
	local clamped = 0
	if want < 0 then
		want = 0
		clamped = 1
	elseif want > total then
		want = total
		clamped = 1
	end
	redis.call('HSET', KEYS[1], 'current', want)
	return {1, want, total, clamped}
`)

// RedisStore implements the membership store on Redis hashes
// (fields total, current, moderator).
type RedisStore struct {
	client  *redis.Client
	prefix  string
	logger  types.Logger
	loader  Loader
	onClamp ClampFunc
	group   singleflight.Group
}

// NewRedisStore creates a store using the given client.
func NewRedisStore(client *redis.Client, prefix string, logger types.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// SetLoader sets the fallback used when a record is missing.
func (s *RedisStore) SetLoader(l Loader) {
	s.loader = l
}

// OnClamp sets the hook invoked for every clamped write.
func (s *RedisStore) OnClamp(fn ClampFunc) {
	s.onClamp = fn
}

func (s *RedisStore) key(roomID string) string {
	return s.prefix + roomID
}

// Register writes the record of a newly created room.
func (s *RedisStore) Register(ctx context.Context, rec room.Record) error {
	if rec.Total <= 0 {
		return fmt.Errorf("invalid capacity %d for room %s", rec.Total, rec.RoomID)
	}
	err := s.client.HSet(ctx, s.key(rec.RoomID),
		"total", rec.Total,
		"current", rec.Current,
		"moderator", rec.Moderator,
	).Err()
	if err != nil {
		return fmt.Errorf("membership register error: %w", err)
	}
	return nil
}

// Remove deletes the record of a room.
func (s *RedisStore) Remove(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, s.key(roomID)).Err(); err != nil {
		return fmt.Errorf("membership remove error: %w", err)
	}
	return nil
}

// Get returns the current record of a room.
func (s *RedisStore) Get(ctx context.Context, roomID string) (room.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key(roomID)).Result()
	if err != nil {
		return room.Record{}, fmt.Errorf("membership get error: %w", err)
	}
	if len(fields) == 0 {
		if err := s.load(ctx, roomID); err != nil {
			return room.Record{}, err
		}
		fields, err = s.client.HGetAll(ctx, s.key(roomID)).Result()
		if err != nil {
			return room.Record{}, fmt.Errorf("membership get error: %w", err)
		}
		if len(fields) == 0 {
			return room.Record{}, room.ErrRoomNotFound
		}
	}
	return parseRecord(roomID, fields)
}

// GetCapacity returns the capacity of a room.
func (s *RedisStore) GetCapacity(ctx context.Context, roomID string) (int, error) {
	rec, err := s.Get(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return rec.Total, nil
}

// GetOccupancy returns the current occupancy of a room.
func (s *RedisStore) GetOccupancy(ctx context.Context, roomID string) (int, error) {
	rec, err := s.Get(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return rec.Current, nil
}

// IsModerator reports whether userID is the moderator of a room.
func (s *RedisStore) IsModerator(ctx context.Context, roomID, userID string) (bool, error) {
	rec, err := s.Get(ctx, roomID)
	if err != nil {
		return false, err
	}
	return userID != "" && rec.Moderator == userID, nil
}

// Reserve atomically takes one slot. It fails with room.ErrRoomFull and
// leaves the record untouched when no slot is free. Once the script has
// admitted the caller nothing else can fail, so an error always means no
// slot is held. The returned record carries occupancy and capacity only.
func (s *RedisStore) Reserve(ctx context.Context, roomID string) (room.Record, error) {
	res, err := s.run(ctx, reserveScript, roomID)
	if err != nil {
		return room.Record{}, err
	}
	rec := room.Record{
		RoomID:  roomID,
		Current: int(res[1]),
		Total:   int(res[2]),
	}
	if res[0] == 0 {
		return rec, room.ErrRoomFull
	}
	return rec, nil
}

// AdjustOccupancy stores newValue as the occupancy, clamped to [0, total].
// Writes are last-writer-wins; callers derive newValue from a fresh
// subscriber count.
func (s *RedisStore) AdjustOccupancy(ctx context.Context, roomID string, newValue int) (room.Record, error) {
	res, err := s.run(ctx, adjustScript, roomID, newValue)
	if err != nil {
		return room.Record{}, err
	}
	stored := int(res[1])
	if res[3] == 1 {
		s.logger.Warn("Occupancy clamped",
			"kind", room.KindInvariant.String(),
			"room", roomID,
			"attempted", newValue,
			"stored", stored)
		if s.onClamp != nil {
			s.onClamp(roomID, newValue, stored)
		}
	}
	rec, err := s.Get(ctx, roomID)
	if err != nil {
		return room.Record{}, err
	}
	rec.Current = stored
	return rec, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// run executes script, loading the record once if it is missing.
func (s *RedisStore) run(ctx context.Context, script *redis.Script, roomID string, args ...any) ([]int64, error) {
	res, err := s.exec(ctx, script, roomID, args...)
	if err != nil {
		return nil, err
	}
	if res[0] == -1 {
		if err := s.load(ctx, roomID); err != nil {
			return nil, err
		}
		if res, err = s.exec(ctx, script, roomID, args...); err != nil {
			return nil, err
		}
		if res[0] == -1 {
			return nil, room.ErrRoomNotFound
		}
	}
	return res, nil
}

func (s *RedisStore) exec(ctx context.Context, script *redis.Script, roomID string, args ...any) ([]int64, error) {
	res, err := script.Run(ctx, s.client, []string{s.key(roomID)}, args...).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("membership script error: %w", err)
	}
	if len(res) < 3 {
		return nil, fmt.Errorf("unexpected Redis response length: %d", len(res))
	}
	return res, nil
}

// load seeds a missing record from the loader. Concurrent misses for the
// same room share one load.
func (s *RedisStore) load(ctx context.Context, roomID string) error {
	if s.loader == nil {
		return room.ErrRoomNotFound
	}
	_, err, _ := s.group.Do(roomID, func() (any, error) {
		rec, err := s.loader.LoadRecord(ctx, roomID)
		if err != nil {
			return nil, err
		}
		key := s.key(roomID)
		_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSetNX(ctx, key, "total", rec.Total)
			pipe.HSetNX(ctx, key, "current", 0)
			pipe.HSetNX(ctx, key, "moderator", rec.Moderator)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("membership seed error: %w", err)
		}
		s.logger.Info("Membership record seeded", "room", roomID, "total", rec.Total)
		return nil, nil
	})
	if errors.Is(err, room.ErrRoomNotFound) {
		return room.ErrRoomNotFound
	}
	return err
}

func parseRecord(roomID string, fields map[string]string) (room.Record, error) {
	total, err := strconv.Atoi(fields["total"])
	if err != nil {
		return room.Record{}, fmt.Errorf("membership record %s has invalid total: %w", roomID, err)
	}
	current, _ := strconv.Atoi(fields["current"])
	return room.Record{
		RoomID:    roomID,
		Total:     total,
		Current:   current,
		Moderator: fields["moderator"],
	}, nil
}
