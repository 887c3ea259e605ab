package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
)

// EventName is the name of an inbound event.
type EventName string

// Inbound events of the room namespace.
const (
	EventJoinRoom         EventName = "joinRoom"
	EventLeaveRoom        EventName = "leaveRoom"
	EventKickUser         EventName = "kickUser"
	EventChatMessage      EventName = "chatMessage"
	EventCallUser         EventName = "call-user"
	EventMakeAnswer       EventName = "make-answer"
	EventICECandidate     EventName = "ice-candidate"
	EventVideoStateChange EventName = "videoStateChange"
	EventAudioStateChange EventName = "audioStateChange"
)

// Inbound events of the lobby namespace.
const (
	EventGetRooms EventName = "getRooms"
)

// Inbound events of the chat namespace.
const (
	EventDirectMessage  EventName = "directMessage"
	EventMessageHistory EventName = "messageHistory"
)

var errUnknownEvent = room.Validation("unknown event")

// Payload is an inbound payload that can check itself.
type Payload interface {
	Validate() error
}

// Handler runs one decoded event for a client.
type Handler func(ctx context.Context, cl *client, data json.RawMessage) error

// On builds a Handler that decodes data into T and validates it before
// calling fn.
func On[T Payload](fn func(ctx context.Context, cl *client, payload T) error) Handler {
	return func(ctx context.Context, cl *client, data json.RawMessage) error {
		var payload T
		if len(data) > 0 {
			if err := json.Unmarshal(data, &payload); err != nil {
				return room.Validation("malformed payload")
			}
		}
		if err := payload.Validate(); err != nil {
			var classified *room.Error
			if errors.As(err, &classified) {
				return err
			}
			return room.Validation(err.Error())
		}
		return fn(ctx, cl, payload)
	}
}

// Table maps event names to handlers. It is built once per namespace and
// only read afterwards.
type Table map[EventName]Handler

// Dispatch runs the handler registered for frame.Event.
func (t Table) Dispatch(ctx context.Context, cl *client, frame Frame) error {
	h, ok := t[EventName(frame.Event)]
	if !ok {
		return errUnknownEvent
	}
	return h(ctx, cl, frame.Data)
}
