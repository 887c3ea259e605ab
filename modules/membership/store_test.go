package membership

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
)

// Requires Redis running on localhost:6379; tests are skipped otherwise.
const testRedisAddr = "localhost:6379"

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)          {}
func (m *mockLogger) Info(msg string, args ...any)           {}
func (m *mockLogger) Warn(msg string, args ...any)           {}
func (m *mockLogger) Error(msg string, args ...any)          {}
func (m *mockLogger) With(args ...any) types.Logger          { return m }
func (m *mockLogger) WithError(err error) types.Logger       { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

type stubLoader struct {
	calls atomic.Int32
	recs  map[string]room.Record
}

func (l *stubLoader) LoadRecord(_ context.Context, roomID string) (*room.Record, error) {
	l.calls.Add(1)
	rec, ok := l.recs[roomID]
	if !ok {
		return nil, room.ErrRoomNotFound
	}
	return &rec, nil
}

func setupTestStore(t *testing.T, prefix string) *RedisStore {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	cleanupKeys(ctx, client, prefix+"*")
	t.Cleanup(func() {
		cleanupKeys(ctx, client, prefix+"*")
		client.Close()
	})

	return NewRedisStore(client, prefix, &mockLogger{})
}

// cleanupKeys removes all keys matching the pattern.
func cleanupKeys(ctx context.Context, client *redis.Client, pattern string) {
	var cursor uint64
	for {
		keys, nextCursor, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
}

func TestRedisStore_RegisterAndGet(t *testing.T) {
	store := setupTestStore(t, "test:membership:get:")
	ctx := context.Background()

	require.NoError(t, store.Register(ctx, room.Record{RoomID: "r1", Total: 4, Moderator: "mod"}))

	rec, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, room.Record{RoomID: "r1", Total: 4, Current: 0, Moderator: "mod"}, rec)

	capacity, err := store.GetCapacity(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 4, capacity)

	isMod, err := store.IsModerator(ctx, "r1", "mod")
	require.NoError(t, err)
	assert.True(t, isMod)

	isMod, err = store.IsModerator(ctx, "r1", "someone")
	require.NoError(t, err)
	assert.False(t, isMod)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	assert.Error(t, store.Register(ctx, room.Record{RoomID: "bad", Total: 0}))
}

func TestRedisStore_ReserveRespectsCapacity(t *testing.T) {
	store := setupTestStore(t, "test:membership:reserve:")
	ctx := context.Background()
	require.NoError(t, store.Register(ctx, room.Record{RoomID: "r1", Total: 2, Moderator: "mod"}))

	rec, err := store.Reserve(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Current)

	rec, err = store.Reserve(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Current)

	rec, err = store.Reserve(ctx, "r1")
	assert.ErrorIs(t, err, room.ErrRoomFull)
	assert.Equal(t, 2, rec.Current)

	occupancy, err := store.GetOccupancy(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, occupancy, "a rejected reservation must not mutate the record")
}

// failCommandHook fails every command with the given name.
type failCommandHook struct {
	name string
}

func (h failCommandHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h failCommandHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == h.name {
			err := errors.New("injected " + h.name + " failure")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (h failCommandHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisStore_ReserveHoldsNoSlotOnReadFailure(t *testing.T) {
	const prefix = "test:membership:readfail:"
	store := setupTestStore(t, prefix)
	ctx := context.Background()
	require.NoError(t, store.Register(ctx, room.Record{RoomID: "r1", Total: 1, Moderator: "mod"}))

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	t.Cleanup(func() { client.Close() })
	client.AddHook(failCommandHook{name: "hgetall"})
	failing := NewRedisStore(client, prefix, &mockLogger{})

	_, err := failing.Get(ctx, "r1")
	require.Error(t, err, "reads must fail through the hooked client")

	rec, err := failing.Reserve(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, room.Record{RoomID: "r1", Current: 1, Total: 1}, rec)

	_, err = failing.Reserve(ctx, "r1")
	assert.ErrorIs(t, err, room.ErrRoomFull)

	occupancy, err := store.GetOccupancy(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, occupancy)
}

func TestRedisStore_ReserveConcurrent(t *testing.T) {
	store := setupTestStore(t, "test:membership:concurrent:")
	ctx := context.Background()
	require.NoError(t, store.Register(ctx, room.Record{RoomID: "r1", Total: 3, Moderator: "mod"}))

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Reserve(ctx, "r1"); err == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), admitted.Load())
	occupancy, err := store.GetOccupancy(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 3, occupancy)
}

func TestRedisStore_AdjustOccupancyClamps(t *testing.T) {
	store := setupTestStore(t, "test:membership:adjust:")
	ctx := context.Background()
	require.NoError(t, store.Register(ctx, room.Record{RoomID: "r1", Total: 2, Moderator: "mod"}))

	var clamps []int
	store.OnClamp(func(_ string, attempted, _ int) {
		clamps = append(clamps, attempted)
	})

	tests := []struct {
		name  string
		value int
		want  int
	}{
		{"within range", 1, 1},
		{"negative clamps to zero", -1, 0},
		{"above capacity clamps to total", 5, 2},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := store.AdjustOccupancy(ctx, "r1", tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Current)
		})
	}

	assert.Equal(t, []int{-1, 5}, clamps)

	_, err := store.AdjustOccupancy(ctx, "missing", 1)
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestRedisStore_LoaderSeedsMissingRecord(t *testing.T) {
	store := setupTestStore(t, "test:membership:loader:")
	ctx := context.Background()
	loader := &stubLoader{recs: map[string]room.Record{
		"r1": {RoomID: "r1", Total: 5, Moderator: "mod"},
	}}
	store.SetLoader(loader)

	rec, err := store.Reserve(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Current)
	assert.Equal(t, 5, rec.Total)

	rec, err = store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "mod", rec.Moderator)
	assert.Equal(t, int32(1), loader.calls.Load(), "seeded record must be reused")

	_, err = store.Get(ctx, "unknown")
	assert.True(t, errors.Is(err, room.ErrRoomNotFound))
}
