// Package signaling relays WebRTC negotiation between connections. It
// keeps no state of its own; delivery is best effort.
package signaling

import (
	"context"
	"errors"

	"github.com/go-monolith/mono/pkg/types"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/fanout"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/metrics"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/registry"
)

// Relay outcomes recorded in metrics.
const (
	OutcomeDelivered = "delivered"
	OutcomeDropped   = "dropped"
	OutcomeFailed    = "failed"
)

// Sender is the part of the fan-out bus the relay needs.
type Sender interface {
	SendTo(ctx context.Context, sid string, env fanout.Envelope) error
	Publish(ctx context.Context, roomID string, env fanout.Envelope) error
}

// Relay forwards signaling payloads.
type Relay struct {
	bus      Sender
	registry *registry.Registry
	metrics  *metrics.Metrics
	logger   types.Logger
}

// NewRelay creates a relay.
func NewRelay(bus Sender, reg *registry.Registry, m *metrics.Metrics, logger types.Logger) *Relay {
	return &Relay{bus: bus, registry: reg, metrics: m, logger: logger}
}

// Relay delivers msg to its target as event, tagged with the sender's
// connection id. Unknown targets and transport failures are logged and
// dropped; only an invalid payload is reported back.
func (r *Relay) Relay(ctx context.Context, from, event string, msg Message) error {
	if err := msg.Validate(); err != nil {
		r.observe(event, OutcomeFailed)
		return room.Validation(err.Error())
	}

	env, err := fanout.NewEnvelope(event, msg.forward(from))
	if err != nil {
		r.observe(event, OutcomeFailed)
		return room.Validation(err.Error())
	}

	err = r.bus.SendTo(ctx, msg.Target(), env)
	switch {
	case err == nil:
		r.observe(event, OutcomeDelivered)
		r.logger.Debug("Signaling relayed", "event", event, "from", from, "to", msg.Target(), "kind", msg.describe())
	case errors.Is(err, fanout.ErrUnknownTarget):
		r.observe(event, OutcomeDropped)
		r.logger.Debug("Signaling target not found", "event", event, "from", from, "to", msg.Target())
	default:
		r.observe(event, OutcomeFailed)
		r.logger.Warn("Failed to relay signaling message",
			"event", event,
			"from", from,
			"to", msg.Target(),
			"error", err)
	}
	return nil
}

// BroadcastMediaState records a media toggle and tells the rest of the room.
func (r *Relay) BroadcastMediaState(ctx context.Context, from, roomID, kind string, enabled bool) error {
	var event string
	switch kind {
	case registry.MediaVideo:
		event = EventVideoStateChange
	case registry.MediaAudio:
		event = EventAudioStateChange
	default:
		return room.Validation("unknown media kind")
	}
	if !r.registry.IsJoined(from, roomID) {
		return room.ErrNotMember
	}
	r.registry.SetMedia(from, kind, enabled)

	env := fanout.MustEnvelope(event, MediaState{SID: from, Enabled: enabled})
	if err := r.bus.Publish(ctx, roomID, env.Excluding(from)); err != nil {
		r.observe(event, OutcomeFailed)
		return room.NewError(room.KindTransport, "failed to broadcast media state")
	}
	r.observe(event, OutcomeDelivered)
	return nil
}

func (r *Relay) observe(event, outcome string) {
	if r.metrics != nil {
		r.metrics.Signaling.WithLabelValues(event, outcome).Inc()
	}
}
