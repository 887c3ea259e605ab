// Package registry tracks the connections accepted by this process.
package registry

import (
	"sort"
	"sync"
	"time"
)

// Media kinds tracked per connection.
const (
	MediaVideo = "video"
	MediaAudio = "audio"
)

// Connection is one accepted websocket connection. It is owned by the
// process that accepted it.
type Connection struct {
	ID          string
	UserID      string
	Nickname    string
	Namespace   string
	ConnectedAt time.Time

	mu    sync.RWMutex
	rooms map[string]struct{}
	media map[string]bool
}

// NewConnection creates a connection with an empty joined set.
func NewConnection(id, userID, nickname, namespace string) *Connection {
	return &Connection{
		ID:          id,
		UserID:      userID,
		Nickname:    nickname,
		Namespace:   namespace,
		ConnectedAt: time.Now(),
		rooms:       make(map[string]struct{}),
		media:       make(map[string]bool),
	}
}

// Rooms returns the ids of the rooms the connection has joined, sorted.
func (c *Connection) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	sort.Strings(rooms)
	return rooms
}

// InRoom reports whether the connection has joined room.
func (c *Connection) InRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// Media returns the last reported state for a media kind.
func (c *Connection) Media(kind string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.media[kind]
}

func (c *Connection) addRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[room]; ok {
		return false
	}
	c.rooms[room] = struct{}{}
	return true
}

func (c *Connection) removeRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[room]; !ok {
		return false
	}
	delete(c.rooms, room)
	return true
}

func (c *Connection) setMedia(kind string, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.media[kind] = enabled
}

// Registry is the per-process table of live connections.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Register adds a connection. It returns false if the id is taken.
func (r *Registry) Register(c *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[c.ID]; exists {
		return false
	}
	r.conns[c.ID] = c
	return true
}

// Unregister removes a connection and returns it. Only the first call for a
// given id returns ok == true.
func (r *Registry) Unregister(id string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	return c, ok
}

// Get returns a live connection by id.
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// MarkJoined records room in the connection's joined set. It returns false
// when the connection is unknown or already in the room.
func (r *Registry) MarkJoined(id, room string) bool {
	c, ok := r.Get(id)
	if !ok {
		return false
	}
	return c.addRoom(room)
}

// MarkLeft removes room from the connection's joined set. It returns false
// when the connection is unknown or was not in the room.
func (r *Registry) MarkLeft(id, room string) bool {
	c, ok := r.Get(id)
	if !ok {
		return false
	}
	return c.removeRoom(room)
}

// IsJoined reports whether connection id has joined room.
func (r *Registry) IsJoined(id, room string) bool {
	c, ok := r.Get(id)
	return ok && c.InRoom(room)
}

// SetMedia stores the media state reported by a connection.
func (r *Registry) SetMedia(id, kind string, enabled bool) bool {
	c, ok := r.Get(id)
	if !ok {
		return false
	}
	c.setMedia(kind, enabled)
	return true
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CountByNamespace returns the number of live connections per namespace.
func (r *Registry) CountByNamespace() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, c := range r.conns {
		counts[c.Namespace]++
	}
	return counts
}

// UserConnections returns how many live connections belong to userID.
func (r *Registry) UserConnections(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.conns {
		if c.UserID == userID {
			n++
		}
	}
	return n
}
