package gateway

import (
	"time"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/message"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/rooms"
)

// Namespaces served under /ws.
const (
	NamespaceRoom  = "room"
	NamespaceLobby = "lobby"
	NamespaceChat  = "chat"
)

// Outbound events of the lobby and chat namespaces.
const (
	EventRooms       = "rooms"
	EventRoomCreated = "roomCreated"
	EventRoomDeleted = "roomDeleted"
	EventRoomUpdated = "roomUpdated"
)

// RoomsPayload answers getRooms.
type RoomsPayload struct {
	Rooms []rooms.RoomView `json:"rooms"`
}

// RoomCreatedPayload announces a new room in the lobby.
type RoomCreatedPayload struct {
	Room      string `json:"room"`
	Title     string `json:"title"`
	Total     int    `json:"total"`
	Moderator string `json:"moderator"`
}

// RoomUpdatedPayload announces an occupancy change in the lobby.
type RoomUpdatedPayload struct {
	Room    string `json:"room"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// DirectMessageOut is a direct message as delivered to its receiver.
type DirectMessageOut struct {
	From      string    `json:"from"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageHistoryPayload answers messageHistory.
type MessageHistoryPayload struct {
	Messages []message.Message `json:"messages"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// ListRoomsResponse is the API response for listing rooms.
type ListRoomsResponse struct {
	Rooms []rooms.RoomView `json:"rooms"`
}

// ListMessagesResponse is the API response for the caller's message log.
type ListMessagesResponse struct {
	Messages []message.Message `json:"messages"`
}
