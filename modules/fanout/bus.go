// Package fanout propagates room scoped events to every subscribed
// connection, on this process or any other, through a shared transport.
package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-monolith/mono/pkg/types"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
)

// DefaultSubjectPrefix is the subject namespace used on the transport.
const DefaultSubjectPrefix = "rooms"

var (
	// ErrNotConnected is returned before the transport is set.
	ErrNotConnected = errors.New("fanout bus not connected")
	// ErrUnknownTarget is returned when a directed send has no live receiver.
	ErrUnknownTarget = errors.New("target connection not found")
)

type attachment struct {
	uid  string
	sink Sink
	subs []Subscription
}

type roomSubscription struct {
	sids map[string]struct{}
	sub  Subscription
}

// PublishObserver is told about every publish, for metrics.
type PublishObserver func(scope string, err error)

// Bus is the fan-out bus of one process.
type Bus struct {
	prefix   string
	presence Presence
	logger   types.Logger
	observe  PublishObserver

	mu        sync.RWMutex
	transport Transport
	attached  map[string]*attachment
	rooms     map[string]*roomSubscription
	lobby     map[string]struct{}
	lobbySub  Subscription
}

// NewBus creates a bus. The transport is set with SetTransport once connected.
func NewBus(presence Presence, prefix string, logger types.Logger) *Bus {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Bus{
		prefix:   prefix,
		presence: presence,
		logger:   logger,
		attached: make(map[string]*attachment),
		rooms:    make(map[string]*roomSubscription),
		lobby:    make(map[string]struct{}),
	}
}

// SetTransport installs the transport used for all traffic.
func (b *Bus) SetTransport(t Transport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transport = t
}

// OnPublish sets the publish observer.
func (b *Bus) OnPublish(fn PublishObserver) {
	b.observe = fn
}

func (b *Bus) roomSubject(roomID string) string { return b.prefix + ".room." + roomID }
func (b *Bus) connSubject(sid string) string     { return b.prefix + ".conn." + sid }
func (b *Bus) userSubject(uid string) string     { return b.prefix + ".user." + uid }
func (b *Bus) lobbySubject() string              { return b.prefix + ".lobby" }

func (b *Bus) getTransport() (Transport, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.transport == nil {
		return nil, ErrNotConnected
	}
	return b.transport, nil
}

// Attach makes a local connection reachable by id and by user id.
func (b *Bus) Attach(ctx context.Context, sid, uid string, sink Sink) error {
	t, err := b.getTransport()
	if err != nil {
		return err
	}

	connSub, err := t.Subscribe(b.connSubject(sid), func(data []byte) {
		if env, ok := b.decode(data); ok {
			b.deliverConn(sid, env)
		}
	})
	if err != nil {
		return err
	}
	userSub, err := t.Subscribe(b.userSubject(uid), func(data []byte) {
		if env, ok := b.decode(data); ok {
			b.deliverConn(sid, env)
		}
	})
	if err != nil {
		_ = connSub.Unsubscribe()
		return err
	}

	b.mu.Lock()
	b.attached[sid] = &attachment{uid: uid, sink: sink, subs: []Subscription{connSub, userSub}}
	b.mu.Unlock()

	if err := b.presence.AddConn(ctx, sid, uid); err != nil {
		b.Detach(ctx, sid)
		return err
	}
	return nil
}

// Detach drops every local subscription of a connection. Shared room
// presence is left to the caller, which removes it through Unsubscribe.
func (b *Bus) Detach(ctx context.Context, sid string) {
	b.mu.Lock()
	a, ok := b.attached[sid]
	delete(b.attached, sid)
	for roomID := range b.rooms {
		b.removeLocalLocked(roomID, sid)
	}
	delete(b.lobby, sid)
	b.mu.Unlock()

	if !ok {
		return
	}
	for _, s := range a.subs {
		if err := s.Unsubscribe(); err != nil {
			b.logger.Warn("Failed to unsubscribe connection", "sid", sid, "error", err)
		}
	}
	if err := b.presence.RemoveConn(ctx, sid); err != nil {
		b.logger.Warn("Failed to remove connection presence", "sid", sid, "error", err)
	}
}

// Subscribe adds a member to a room on the shared presence and routes the
// room's traffic to it locally. It reports false when the presence entry
// already existed; the local route is ensured either way.
func (b *Bus) Subscribe(ctx context.Context, roomID string, m room.Member) (bool, error) {
	t, err := b.getTransport()
	if err != nil {
		return false, err
	}
	added, err := b.presence.Add(ctx, roomID, m)
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	rs, ok := b.rooms[roomID]
	if !ok {
		sub, err := t.Subscribe(b.roomSubject(roomID), func(data []byte) {
			if env, ok := b.decode(data); ok {
				b.deliverRoom(roomID, env)
			}
		})
		if err != nil {
			if added {
				_, _ = b.presence.Remove(ctx, roomID, m.SID)
			}
			return false, err
		}
		rs = &roomSubscription{sids: make(map[string]struct{}), sub: sub}
		b.rooms[roomID] = rs
	}
	rs.sids[m.SID] = struct{}{}
	return added, nil
}

// Unsubscribe removes sid from a room. It returns true only for the call
// that actually removed the shared presence entry, so concurrent leaves of
// one connection are applied once.
func (b *Bus) Unsubscribe(ctx context.Context, roomID, sid string) (bool, error) {
	removed, err := b.presence.Remove(ctx, roomID, sid)
	b.mu.Lock()
	b.removeLocalLocked(roomID, sid)
	b.mu.Unlock()
	return removed, err
}

// Kick removes sid from a room wherever the connection lives.
func (b *Bus) Kick(ctx context.Context, roomID, sid string) (bool, error) {
	removed, err := b.Unsubscribe(ctx, roomID, sid)
	if err != nil {
		return false, err
	}
	ctrl := Envelope{Control: ControlUnsubscribe, Room: roomID}
	if err := b.SendTo(ctx, sid, ctrl); err != nil && !errors.Is(err, ErrUnknownTarget) {
		b.logger.Warn("Failed to send unsubscribe control", "room", roomID, "sid", sid, "error", err)
	}
	return removed, nil
}

// removeLocalLocked drops the local route; b.mu must be held.
func (b *Bus) removeLocalLocked(roomID, sid string) {
	rs, ok := b.rooms[roomID]
	if !ok {
		return
	}
	delete(rs.sids, sid)
	if len(rs.sids) == 0 {
		if err := rs.sub.Unsubscribe(); err != nil {
			b.logger.Warn("Failed to unsubscribe room", "room", roomID, "error", err)
		}
		delete(b.rooms, roomID)
	}
}

// Publish sends env to every subscriber of a room.
func (b *Bus) Publish(ctx context.Context, roomID string, env Envelope) error {
	env.Room = roomID
	return b.publish(ctx, "room", b.roomSubject(roomID), env)
}

// SendTo delivers env to one connection. Local connections are served
// without touching the transport.
func (b *Bus) SendTo(ctx context.Context, sid string, env Envelope) error {
	b.mu.RLock()
	_, local := b.attached[sid]
	b.mu.RUnlock()
	if local {
		b.deliverConn(sid, env)
		return nil
	}

	exists, err := b.presence.ConnExists(ctx, sid)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUnknownTarget
	}
	return b.publish(ctx, "conn", b.connSubject(sid), env)
}

// SendToUser delivers env to every connection of a user.
func (b *Bus) SendToUser(ctx context.Context, uid string, env Envelope) error {
	return b.publish(ctx, "user", b.userSubject(uid), env)
}

// JoinLobby routes lobby broadcasts to a local connection.
func (b *Bus) JoinLobby(sid string) error {
	t, err := b.getTransport()
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lobbySub == nil {
		sub, err := t.Subscribe(b.lobbySubject(), func(data []byte) {
			if env, ok := b.decode(data); ok {
				b.deliverLobby(env)
			}
		})
		if err != nil {
			return err
		}
		b.lobbySub = sub
	}
	b.lobby[sid] = struct{}{}
	return nil
}

// PublishLobby sends env to every lobby connection on every process.
func (b *Bus) PublishLobby(ctx context.Context, env Envelope) error {
	return b.publish(ctx, "lobby", b.lobbySubject(), env)
}

// SubscriberCount returns the number of connections subscribed to a room
// across all processes.
func (b *Bus) SubscriberCount(ctx context.Context, roomID string) (int, error) {
	return b.presence.Count(ctx, roomID)
}

// Members returns the connections subscribed to a room.
func (b *Bus) Members(ctx context.Context, roomID string) ([]room.Member, error) {
	return b.presence.Members(ctx, roomID)
}

// Member looks up one subscriber of a room.
func (b *Bus) Member(ctx context.Context, roomID, sid string) (room.Member, bool, error) {
	return b.presence.Get(ctx, roomID, sid)
}

// LocalCount returns the number of attached connections.
func (b *Bus) LocalCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.attached)
}

// Ping checks the transport and the presence store.
func (b *Bus) Ping(ctx context.Context) error {
	t, err := b.getTransport()
	if err != nil {
		return err
	}
	if err := t.Ping(ctx); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := b.presence.Ping(ctx); err != nil {
		return fmt.Errorf("presence: %w", err)
	}
	return nil
}

func (b *Bus) publish(ctx context.Context, scope, subject string, env Envelope) error {
	t, err := b.getTransport()
	if err == nil {
		var data []byte
		data, err = json.Marshal(env)
		if err == nil {
			err = t.Publish(ctx, subject, data)
		}
	}
	if b.observe != nil {
		b.observe(scope, err)
	}
	if err != nil {
		return fmt.Errorf("fanout publish %s: %w", scope, err)
	}
	return nil
}

func (b *Bus) decode(data []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.logger.Error("Failed to decode envelope", "error", err)
		return Envelope{}, false
	}
	return env, true
}

func (b *Bus) deliverRoom(roomID string, env Envelope) {
	b.mu.RLock()
	rs, ok := b.rooms[roomID]
	var sinks []Sink
	if ok {
		sinks = make([]Sink, 0, len(rs.sids))
		for sid := range rs.sids {
			if sid == env.Exclude {
				continue
			}
			if a, ok := b.attached[sid]; ok {
				sinks = append(sinks, a.sink)
			}
		}
	}
	b.mu.RUnlock()

	for _, s := range sinks {
		s.Deliver(env)
	}
}

func (b *Bus) deliverConn(sid string, env Envelope) {
	if env.Control == ControlUnsubscribe {
		b.mu.Lock()
		b.removeLocalLocked(env.Room, sid)
		b.mu.Unlock()
	}

	b.mu.RLock()
	a, ok := b.attached[sid]
	b.mu.RUnlock()
	if ok && sid != env.Exclude {
		a.sink.Deliver(env)
	}
}

func (b *Bus) deliverLobby(env Envelope) {
	b.mu.RLock()
	sinks := make([]Sink, 0, len(b.lobby))
	for sid := range b.lobby {
		if a, ok := b.attached[sid]; ok {
			sinks = append(sinks, a.sink)
		}
	}
	b.mu.RUnlock()

	for _, s := range sinks {
		s.Deliver(env)
	}
}
