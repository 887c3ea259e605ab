package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MemberJoinedEvent is emitted after a join has been committed to the membership store.
type MemberJoinedEvent struct {
	RoomID    string    `json:"room_id"`
	SID       string    `json:"sid"`
	UserID    string    `json:"user_id"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// MemberLeftEvent is emitted after a leave or disconnect has been committed.
type MemberLeftEvent struct {
	RoomID    string    `json:"room_id"`
	SID       string    `json:"sid"`
	UserID    string    `json:"user_id"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// MemberKickedEvent is emitted after a moderator removed a member.
type MemberKickedEvent struct {
	RoomID       string    `json:"room_id"`
	SID          string    `json:"sid"`
	UserID       string    `json:"user_id"`
	ModeratorUID string    `json:"moderator_uid"`
	Current      int       `json:"current"`
	Total        int       `json:"total"`
	Timestamp    time.Time `json:"timestamp"`
}

// RoomCreatedEvent is emitted when room metadata is created.
type RoomCreatedEvent struct {
	RoomID       string    `json:"room_id"`
	Title        string    `json:"title"`
	Total        int       `json:"total"`
	ModeratorUID string    `json:"moderator_uid"`
	Timestamp    time.Time `json:"timestamp"`
}

// RoomDeletedEvent is emitted when room metadata is deleted.
type RoomDeletedEvent struct {
	RoomID    string    `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the room domain.
var (
	MemberJoinedV1 = helper.EventDefinition[MemberJoinedEvent](
		"coordinator",
		"MemberJoined",
		"v1",
	)

	MemberLeftV1 = helper.EventDefinition[MemberLeftEvent](
		"coordinator",
		"MemberLeft",
		"v1",
	)

	MemberKickedV1 = helper.EventDefinition[MemberKickedEvent](
		"coordinator",
		"MemberKicked",
		"v1",
	)

	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"rooms",
		"RoomCreated",
		"v1",
	)

	RoomDeletedV1 = helper.EventDefinition[RoomDeletedEvent](
		"rooms",
		"RoomDeleted",
		"v1",
	)
)
