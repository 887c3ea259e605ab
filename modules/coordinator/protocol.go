package coordinator

import "github.com/SWM-FIRE/modoco-backend-sub000/domain/room"

// Events sent to clients of the room namespace.
const (
	EventJoinedRoom        = "joinedRoom"
	EventAlreadyJoinedRoom = "alreadyJoinedRoom"
	EventRoomFull          = "roomFull"
	EventNewUserJoined     = "newUserJoined"
	EventExistingRoomUsers = "existingRoomUsers"
	EventLeftRoom          = "leftRoom"
	EventKickUser          = "kickUser"
	EventChatMessage       = "chatMessage"
)

// Reasons carried by MemberLeft events.
const (
	ReasonLeave      = "leave"
	ReasonDisconnect = "disconnect"
)

// RoomPayload names a room.
type RoomPayload struct {
	Room string `json:"room"`
}

// ExistingRoomUsers is sent to a member right after it joins.
type ExistingRoomUsers struct {
	Users   []room.Member `json:"users"`
	Current room.Member   `json:"current"`
}

// LeftRoom tells the remaining members who left.
type LeftRoom struct {
	SID string `json:"sid"`
}

// KickTarget identifies the member a moderator evicts.
type KickTarget struct {
	UID          string `json:"uid"`
	ConnectionID string `json:"connectionId"`
}

// KickNotice is broadcast to the whole room when a member is kicked.
type KickNotice struct {
	KickUser KickTarget `json:"kickUser"`
}
