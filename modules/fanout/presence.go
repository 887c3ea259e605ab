package fanout

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
)

// Presence is the shared record of which connections are subscribed to
// which rooms and which connections are live anywhere.
type Presence interface {
	// Add subscribes m to room. It returns false if m was already subscribed.
	Add(ctx context.Context, roomID string, m room.Member) (bool, error)
	// Remove unsubscribes sid from room. Only one concurrent caller gets true.
	Remove(ctx context.Context, roomID, sid string) (bool, error)
	Count(ctx context.Context, roomID string) (int, error)
	Members(ctx context.Context, roomID string) ([]room.Member, error)
	Get(ctx context.Context, roomID, sid string) (room.Member, bool, error)

	AddConn(ctx context.Context, sid, uid string) error
	RemoveConn(ctx context.Context, sid string) error
	ConnExists(ctx context.Context, sid string) (bool, error)

	Ping(ctx context.Context) error
}

// DefaultPresencePrefix is the Redis key prefix for presence records.
const DefaultPresencePrefix = "fanout:"

// RedisPresence keeps presence in Redis hashes: one hash per room
// (sid -> uid) and one hash of live connections.
type RedisPresence struct {
	client *redis.Client
	prefix string
}

// NewRedisPresence creates a Redis backed presence.
func NewRedisPresence(client *redis.Client, prefix string) *RedisPresence {
	if prefix == "" {
		prefix = DefaultPresencePrefix
	}
	return &RedisPresence{client: client, prefix: prefix}
}

func (p *RedisPresence) roomKey(roomID string) string {
	return p.prefix + "presence:" + roomID
}

func (p *RedisPresence) connsKey() string {
	return p.prefix + "conns"
}

// Add subscribes m to room.
func (p *RedisPresence) Add(ctx context.Context, roomID string, m room.Member) (bool, error) {
	added, err := p.client.HSetNX(ctx, p.roomKey(roomID), m.SID, m.UID).Result()
	if err != nil {
		return false, fmt.Errorf("presence add error: %w", err)
	}
	return added, nil
}

// Remove unsubscribes sid from room.
func (p *RedisPresence) Remove(ctx context.Context, roomID, sid string) (bool, error) {
	n, err := p.client.HDel(ctx, p.roomKey(roomID), sid).Result()
	if err != nil {
		return false, fmt.Errorf("presence remove error: %w", err)
	}
	return n == 1, nil
}

// Count returns the number of subscribers of room.
func (p *RedisPresence) Count(ctx context.Context, roomID string) (int, error) {
	n, err := p.client.HLen(ctx, p.roomKey(roomID)).Result()
	if err != nil {
		return 0, fmt.Errorf("presence count error: %w", err)
	}
	return int(n), nil
}

// Members returns the subscribers of room ordered by connection id.
func (p *RedisPresence) Members(ctx context.Context, roomID string) ([]room.Member, error) {
	fields, err := p.client.HGetAll(ctx, p.roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence members error: %w", err)
	}
	members := make([]room.Member, 0, len(fields))
	for sid, uid := range fields {
		members = append(members, room.Member{SID: sid, UID: uid})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].SID < members[j].SID })
	return members, nil
}

// Get returns one subscriber of room.
func (p *RedisPresence) Get(ctx context.Context, roomID, sid string) (room.Member, bool, error) {
	uid, err := p.client.HGet(ctx, p.roomKey(roomID), sid).Result()
	if err == redis.Nil {
		return room.Member{}, false, nil
	}
	if err != nil {
		return room.Member{}, false, fmt.Errorf("presence get error: %w", err)
	}
	return room.Member{SID: sid, UID: uid}, true, nil
}

// AddConn records a live connection.
func (p *RedisPresence) AddConn(ctx context.Context, sid, uid string) error {
	if err := p.client.HSet(ctx, p.connsKey(), sid, uid).Err(); err != nil {
		return fmt.Errorf("presence add connection error: %w", err)
	}
	return nil
}

// RemoveConn forgets a connection.
func (p *RedisPresence) RemoveConn(ctx context.Context, sid string) error {
	if err := p.client.HDel(ctx, p.connsKey(), sid).Err(); err != nil {
		return fmt.Errorf("presence remove connection error: %w", err)
	}
	return nil
}

// ConnExists reports whether a connection is live on any process.
func (p *RedisPresence) ConnExists(ctx context.Context, sid string) (bool, error) {
	ok, err := p.client.HExists(ctx, p.connsKey(), sid).Result()
	if err != nil {
		return false, fmt.Errorf("presence lookup error: %w", err)
	}
	return ok, nil
}

// Ping checks the Redis connection.
func (p *RedisPresence) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// MemoryPresence keeps presence in process memory. It is only correct for
// a single instance.
type MemoryPresence struct {
	mu    sync.Mutex
	rooms map[string][]room.Member
	conns map[string]string
}

// NewMemoryPresence creates an empty in-memory presence.
func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{
		rooms: make(map[string][]room.Member),
		conns: make(map[string]string),
	}
}

func (p *MemoryPresence) index(roomID, sid string) int {
	for i, m := range p.rooms[roomID] {
		if m.SID == sid {
			return i
		}
	}
	return -1
}

// Add subscribes m to room.
func (p *MemoryPresence) Add(_ context.Context, roomID string, m room.Member) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index(roomID, m.SID) >= 0 {
		return false, nil
	}
	p.rooms[roomID] = append(p.rooms[roomID], m)
	return true, nil
}

// Remove unsubscribes sid from room.
func (p *MemoryPresence) Remove(_ context.Context, roomID, sid string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.index(roomID, sid)
	if i < 0 {
		return false, nil
	}
	members := p.rooms[roomID]
	p.rooms[roomID] = append(members[:i:i], members[i+1:]...)
	if len(p.rooms[roomID]) == 0 {
		delete(p.rooms, roomID)
	}
	return true, nil
}

// Count returns the number of subscribers of room.
func (p *MemoryPresence) Count(_ context.Context, roomID string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rooms[roomID]), nil
}

// Members returns the subscribers of room in join order.
func (p *MemoryPresence) Members(_ context.Context, roomID string) ([]room.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	members := make([]room.Member, len(p.rooms[roomID]))
	copy(members, p.rooms[roomID])
	return members, nil
}

// Get returns one subscriber of room.
func (p *MemoryPresence) Get(_ context.Context, roomID, sid string) (room.Member, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := p.index(roomID, sid); i >= 0 {
		return p.rooms[roomID][i], true, nil
	}
	return room.Member{}, false, nil
}

// AddConn records a live connection.
func (p *MemoryPresence) AddConn(_ context.Context, sid, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conns[sid] = uid
	return nil
}

// RemoveConn forgets a connection.
func (p *MemoryPresence) RemoveConn(_ context.Context, sid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conns, sid)
	return nil
}

// ConnExists reports whether a connection is live.
func (p *MemoryPresence) ConnExists(_ context.Context, sid string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.conns[sid]
	return ok, nil
}

// Ping always succeeds.
func (p *MemoryPresence) Ping(_ context.Context) error {
	return nil
}
