package gateway

import (
	"encoding/json"
)

// Frame is the websocket message format in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventException carries an error back to the connection that caused it.
const EventException = "exception"

// Exception is the payload of an exception frame.
type Exception struct {
	Message string `json:"message"`
}

func encodeFrame(event string, data json.RawMessage) []byte {
	b, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		// RawMessage that is not valid JSON; send the event alone.
		b, _ = json.Marshal(Frame{Event: event})
	}
	return b
}

func decodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}
