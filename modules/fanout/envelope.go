package fanout

import (
	"encoding/json"
	"fmt"
)

// ControlUnsubscribe tells the owning process to drop a connection's room
// subscription.
const ControlUnsubscribe = "unsubscribe"

// Envelope is the unit carried by the bus. Event and Data are what the
// client sees; the other fields steer delivery.
type Envelope struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
	Room    string          `json:"room,omitempty"`
	Exclude string          `json:"exclude,omitempty"`
	Control string          `json:"control,omitempty"`
}

// NewEnvelope encodes payload as the envelope data.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

// MustEnvelope is NewEnvelope for payloads that always encode.
func MustEnvelope(event string, payload any) Envelope {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// Excluding returns a copy of e that is not delivered to sid.
func (e Envelope) Excluding(sid string) Envelope {
	e.Exclude = sid
	return e
}

// Sink receives envelopes for one attached connection. Deliver must not block.
type Sink interface {
	Deliver(env Envelope)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(env Envelope)

// Deliver calls f(env).
func (f SinkFunc) Deliver(env Envelope) {
	f(env)
}
