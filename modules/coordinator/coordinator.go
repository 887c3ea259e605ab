// Package coordinator applies room membership changes and broadcasts the
// resulting facts to the room.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
	"github.com/SWM-FIRE/modoco-backend-sub000/events"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/fanout"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/lifecycle"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/metrics"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/registry"
)

// MembershipStore is the shared occupancy record of each room.
type MembershipStore interface {
	Reserve(ctx context.Context, roomID string) (room.Record, error)
	AdjustOccupancy(ctx context.Context, roomID string, newValue int) (room.Record, error)
	IsModerator(ctx context.Context, roomID, userID string) (bool, error)
}

// Bus is the part of the fan-out bus the coordinator drives.
type Bus interface {
	Attach(ctx context.Context, sid, uid string, sink fanout.Sink) error
	Detach(ctx context.Context, sid string)
	Subscribe(ctx context.Context, roomID string, m room.Member) (bool, error)
	Unsubscribe(ctx context.Context, roomID, sid string) (bool, error)
	Kick(ctx context.Context, roomID, sid string) (bool, error)
	Publish(ctx context.Context, roomID string, env fanout.Envelope) error
	SendTo(ctx context.Context, sid string, env fanout.Envelope) error
	Members(ctx context.Context, roomID string) ([]room.Member, error)
	Member(ctx context.Context, roomID, sid string) (room.Member, bool, error)
	SubscriberCount(ctx context.Context, roomID string) (int, error)
}

// Limiter throttles chat per connection.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MediaBroadcaster publishes media toggles.
type MediaBroadcaster interface {
	BroadcastMediaState(ctx context.Context, from, roomID, kind string, enabled bool) error
}

// Deps groups the collaborators of a Coordinator.
type Deps struct {
	Registry  *registry.Registry
	Store     MembershipStore
	Bus       Bus
	Lifecycle lifecycle.Observer
	Media     MediaBroadcaster
	Limiter   Limiter
	Metrics   *metrics.Metrics
	Logger    types.Logger
}

// Coordinator runs Join, Leave, Disconnect and Kick for the connections
// of this process.
type Coordinator struct {
	registry  *registry.Registry
	store     MembershipStore
	bus       Bus
	lifecycle lifecycle.Observer
	media     MediaBroadcaster
	limiter   Limiter
	metrics   *metrics.Metrics
	logger    types.Logger
	eventBus  mono.EventBus
}

// New creates a coordinator.
func New(d Deps) *Coordinator {
	return &Coordinator{
		registry:  d.Registry,
		store:     d.Store,
		bus:       d.Bus,
		lifecycle: d.Lifecycle,
		media:     d.Media,
		limiter:   d.Limiter,
		metrics:   d.Metrics,
		logger:    d.Logger,
	}
}

// SetEventBus sets the bus used to emit membership events.
func (c *Coordinator) SetEventBus(bus mono.EventBus) {
	c.eventBus = bus
}

// Connect registers a connection and makes it reachable through the bus.
func (c *Coordinator) Connect(ctx context.Context, conn *registry.Connection, sink fanout.Sink) error {
	if !c.registry.Register(conn) {
		return fmt.Errorf("connection %s already registered", conn.ID)
	}
	wrapped := fanout.SinkFunc(func(env fanout.Envelope) {
		if env.Control == fanout.ControlUnsubscribe {
			c.registry.MarkLeft(conn.ID, env.Room)
			return
		}
		sink.Deliver(env)
	})
	if err := c.bus.Attach(ctx, conn.ID, conn.UserID, wrapped); err != nil {
		c.registry.Unregister(conn.ID)
		return err
	}
	return nil
}

// Join adds the connection to a room. The occupancy is reserved before
// anything is broadcast.
func (c *Coordinator) Join(ctx context.Context, sid, roomID, userID string) (err error) {
	defer func() { c.observe("join", err) }()

	if err := c.available(); err != nil {
		return err
	}
	conn, err := c.connection(sid)
	if err != nil {
		return err
	}
	if userID != "" && userID != conn.UserID {
		return room.ErrWrongUser
	}
	if conn.InRoom(roomID) {
		return room.ErrAlreadyJoined
	}

	rec, err := c.store.Reserve(ctx, roomID)
	if err != nil {
		return err
	}

	self := room.Member{SID: conn.ID, UID: conn.UserID}
	existing, err := c.bus.Members(ctx, roomID)
	added := false
	if err == nil {
		added, err = c.bus.Subscribe(ctx, roomID, self)
	}
	if err != nil {
		c.rollback(ctx, roomID)
		c.logger.Error("Failed to subscribe to room", "room", roomID, "sid", sid, "error", err)
		return room.NewError(room.KindTransport, "failed to join room")
	}
	if !added {
		// A stale presence entry already counted this connection.
		c.logger.Warn("Stale presence entry on join", "room", roomID, "sid", sid)
		rec = c.reconcile(ctx, roomID)
		existing = withoutMember(existing, conn.ID)
	}
	c.registry.MarkJoined(conn.ID, roomID)

	c.sendTo(ctx, sid, EventExistingRoomUsers, ExistingRoomUsers{Users: existing, Current: self})
	c.sendTo(ctx, sid, EventJoinedRoom, RoomPayload{Room: roomID})
	c.publish(ctx, roomID, fanout.MustEnvelope(EventNewUserJoined, self).Excluding(sid))

	c.logger.Info("Member joined",
		"room", roomID,
		"sid", sid,
		"uid", conn.UserID,
		"current", rec.Current,
		"total", rec.Total)

	c.emitJoined(events.MemberJoinedEvent{
		RoomID:    roomID,
		SID:       sid,
		UserID:    conn.UserID,
		Current:   rec.Current,
		Total:     rec.Total,
		Timestamp: time.Now(),
	})
	return nil
}

// Leave removes the connection from a room. Leaving a room the connection
// is not in is a no-op, so concurrent leaves apply once.
func (c *Coordinator) Leave(ctx context.Context, sid, roomID string) (err error) {
	defer func() { c.observe("leave", err) }()

	conn, err := c.connection(sid)
	if err != nil {
		return err
	}
	_, err = c.leave(ctx, conn, roomID, ReasonLeave)
	return err
}

// Disconnect runs the leave path for every room of a connection and drops
// it from the registry. Only the first call for a connection does work.
func (c *Coordinator) Disconnect(ctx context.Context, sid string) (*registry.Connection, bool) {
	conn, ok := c.registry.Unregister(sid)
	if !ok {
		return nil, false
	}

	for _, roomID := range conn.Rooms() {
		if _, err := c.leave(ctx, conn, roomID, ReasonDisconnect); err != nil {
			c.logger.Warn("Failed to leave room on disconnect", "room", roomID, "sid", sid, "error", err)
		}
	}
	c.bus.Detach(ctx, sid)
	c.observe("disconnect", nil)

	c.logger.Debug("Connection cleaned up", "sid", sid, "uid", conn.UserID)
	return conn, true
}

func (c *Coordinator) leave(ctx context.Context, conn *registry.Connection, roomID, reason string) (bool, error) {
	removed, err := c.bus.Unsubscribe(ctx, roomID, conn.ID)
	c.registry.MarkLeft(conn.ID, roomID)
	if err != nil {
		return false, room.NewError(room.KindTransport, "failed to leave room")
	}
	if !removed {
		return false, nil
	}

	rec := c.reconcile(ctx, roomID)
	c.publish(ctx, roomID, fanout.MustEnvelope(EventLeftRoom, LeftRoom{SID: conn.ID}))

	c.logger.Info("Member left",
		"room", roomID,
		"sid", conn.ID,
		"uid", conn.UserID,
		"reason", reason,
		"current", rec.Current)

	c.emitLeft(events.MemberLeftEvent{
		RoomID:    roomID,
		SID:       conn.ID,
		UserID:    conn.UserID,
		Current:   rec.Current,
		Total:     rec.Total,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	return true, nil
}

// Kick evicts a member on behalf of the room's moderator.
func (c *Coordinator) Kick(ctx context.Context, sid, roomID string, target KickTarget) (err error) {
	defer func() { c.observe("kick", err) }()

	if err := c.available(); err != nil {
		return err
	}
	conn, err := c.connection(sid)
	if err != nil {
		return err
	}

	isModerator, err := c.store.IsModerator(ctx, roomID, conn.UserID)
	if err != nil {
		return err
	}
	if !isModerator {
		return room.ErrNotModerator
	}
	if target.ConnectionID == conn.ID || target.UID == conn.UserID {
		return room.ErrSelfKick
	}

	member, ok, err := c.bus.Member(ctx, roomID, target.ConnectionID)
	if err != nil {
		return room.NewError(room.KindTransport, "failed to look up target")
	}
	if !ok {
		return room.ErrTargetNotFound
	}
	if member.UID == conn.UserID {
		return room.ErrSelfKick
	}

	notice := fanout.MustEnvelope(EventKickUser, KickNotice{
		KickUser: KickTarget{UID: member.UID, ConnectionID: member.SID},
	})
	c.publish(ctx, roomID, notice.Excluding(member.SID))
	if err := c.bus.SendTo(ctx, member.SID, notice); err != nil {
		c.logger.Warn("Failed to notify kicked member", "room", roomID, "sid", member.SID, "error", err)
	}

	removed, err := c.bus.Kick(ctx, roomID, member.SID)
	if err != nil {
		return room.NewError(room.KindTransport, "failed to remove target")
	}
	if !removed {
		// The target left on its own in the meantime.
		return nil
	}

	rec := c.reconcile(ctx, roomID)
	c.logger.Info("Member kicked",
		"room", roomID,
		"sid", member.SID,
		"uid", member.UID,
		"moderator", conn.UserID,
		"current", rec.Current)

	c.emitKicked(events.MemberKickedEvent{
		RoomID:       roomID,
		SID:          member.SID,
		UserID:       member.UID,
		ModeratorUID: conn.UserID,
		Current:      rec.Current,
		Total:        rec.Total,
		Timestamp:    time.Now(),
	})
	return nil
}

// Chat relays a chat message to the rest of the room.
func (c *Coordinator) Chat(ctx context.Context, sid, roomID string, payload any) (err error) {
	defer func() { c.observe("chat", err) }()

	if err := c.available(); err != nil {
		return err
	}
	if !c.registry.IsJoined(sid, roomID) {
		return room.ErrNotMember
	}
	if c.limiter != nil {
		allowed, err := c.limiter.Allow(ctx, "chat:"+sid)
		if err != nil {
			c.logger.Warn("Rate limiter unavailable, allowing message", "sid", sid, "error", err)
		} else if !allowed {
			if c.metrics != nil {
				c.metrics.RateLimited.Inc()
			}
			return room.ErrRateLimited
		}
	}

	env, err := fanout.NewEnvelope(EventChatMessage, payload)
	if err != nil {
		return room.Validation("invalid chat message")
	}
	if err := c.bus.Publish(ctx, roomID, env.Excluding(sid)); err != nil {
		return room.NewError(room.KindTransport, "failed to send message")
	}
	return nil
}

// MediaState forwards a media toggle of a joined member.
func (c *Coordinator) MediaState(ctx context.Context, sid, roomID, kind string, enabled bool) (err error) {
	defer func() { c.observe("media", err) }()

	if err := c.available(); err != nil {
		return err
	}
	return c.media.BroadcastMediaState(ctx, sid, roomID, kind, enabled)
}

// reconcile writes the live subscriber count back as the room occupancy.
func (c *Coordinator) reconcile(ctx context.Context, roomID string) room.Record {
	count, err := c.bus.SubscriberCount(ctx, roomID)
	if err != nil {
		c.logger.Error("Failed to count subscribers", "room", roomID, "error", err)
		return room.Record{RoomID: roomID}
	}
	rec, err := c.store.AdjustOccupancy(ctx, roomID, count)
	if err != nil {
		c.logger.Error("Failed to adjust occupancy", "room", roomID, "value", count, "error", err)
		return room.Record{RoomID: roomID, Current: count}
	}
	return rec
}

func withoutMember(members []room.Member, sid string) []room.Member {
	out := make([]room.Member, 0, len(members))
	for _, m := range members {
		if m.SID != sid {
			out = append(out, m)
		}
	}
	return out
}

func (c *Coordinator) rollback(ctx context.Context, roomID string) {
	_ = c.reconcile(ctx, roomID)
}

func (c *Coordinator) available() error {
	if c.lifecycle != nil && !c.lifecycle.Snapshot().AcceptingRooms() {
		return room.ErrUnavailable
	}
	return nil
}

func (c *Coordinator) connection(sid string) (*registry.Connection, error) {
	conn, ok := c.registry.Get(sid)
	if !ok {
		return nil, room.ErrInvalidCredentials
	}
	return conn, nil
}

func (c *Coordinator) sendTo(ctx context.Context, sid, event string, payload any) {
	env, err := fanout.NewEnvelope(event, payload)
	if err != nil {
		c.logger.Error("Failed to encode event", "event", event, "error", err)
		return
	}
	if err := c.bus.SendTo(ctx, sid, env); err != nil {
		c.logger.Warn("Failed to send event", "event", event, "sid", sid, "error", err)
	}
}

func (c *Coordinator) publish(ctx context.Context, roomID string, env fanout.Envelope) {
	if err := c.bus.Publish(ctx, roomID, env); err != nil {
		c.logger.Warn("Failed to publish to room", "event", env.Event, "room", roomID, "error", err)
	}
}

func (c *Coordinator) observe(op string, err error) {
	if c.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = room.KindOf(err).String()
	}
	c.metrics.RoomOperations.WithLabelValues(op, result).Inc()
}

func (c *Coordinator) emitJoined(event events.MemberJoinedEvent) {
	if c.eventBus == nil {
		return
	}
	if err := events.MemberJoinedV1.Publish(c.eventBus, event, nil); err != nil {
		c.logger.Warn("Failed to emit MemberJoined", "room", event.RoomID, "error", err)
	}
}

func (c *Coordinator) emitLeft(event events.MemberLeftEvent) {
	if c.eventBus == nil {
		return
	}
	if err := events.MemberLeftV1.Publish(c.eventBus, event, nil); err != nil {
		c.logger.Warn("Failed to emit MemberLeft", "room", event.RoomID, "error", err)
	}
}

func (c *Coordinator) emitKicked(event events.MemberKickedEvent) {
	if c.eventBus == nil {
		return
	}
	if err := events.MemberKickedV1.Publish(c.eventBus, event, nil); err != nil {
		c.logger.Warn("Failed to emit MemberKicked", "room", event.RoomID, "error", err)
	}
}
