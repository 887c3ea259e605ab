package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// ConnectionOpenedEvent is emitted when an authenticated websocket connection is accepted.
type ConnectionOpenedEvent struct {
	SID       string    `json:"sid"`
	UserID    string    `json:"user_id"`
	Nickname  string    `json:"nickname"`
	Namespace string    `json:"namespace"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionClosedEvent is emitted once per connection after disconnect cleanup.
// Remaining is the number of connections the user still holds on this process.
type ConnectionClosedEvent struct {
	SID       string    `json:"sid"`
	UserID    string    `json:"user_id"`
	Namespace string    `json:"namespace"`
	Remaining int       `json:"remaining"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the gateway.
var (
	ConnectionOpenedV1 = helper.EventDefinition[ConnectionOpenedEvent](
		"gateway",
		"ConnectionOpened",
		"v1",
	)

	ConnectionClosedV1 = helper.EventDefinition[ConnectionClosedEvent](
		"gateway",
		"ConnectionClosed",
		"v1",
	)
)
