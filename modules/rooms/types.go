package rooms

import (
	"time"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
)

// RoomView is a room with its live occupancy.
type RoomView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Details   string    `json:"details"`
	Tags      []string  `json:"tags"`
	Theme     string    `json:"theme"`
	Total     int       `json:"total"`
	Current   int       `json:"current"`
	Moderator string    `json:"moderator"`
	CreatedAt time.Time `json:"created_at"`
}

func newRoomView(rm *room.Room, current int) RoomView {
	return RoomView{
		ID:        rm.ID,
		Title:     rm.Title,
		Details:   rm.Details,
		Tags:      rm.TagList(),
		Theme:     rm.Theme,
		Total:     rm.Capacity,
		Current:   current,
		Moderator: rm.ModeratorUID,
		CreatedAt: rm.CreatedAt,
	}
}

// CreateRoomRequest represents a room creation request.
type CreateRoomRequest struct {
	Title        string   `json:"title"`
	Details      string   `json:"details"`
	Tags         []string `json:"tags"`
	Theme        string   `json:"theme"`
	Capacity     int      `json:"total"`
	ModeratorUID string   `json:"moderator"`
}

// GetRoomRequest represents a get room request.
type GetRoomRequest struct {
	ID string `json:"id"`
}

// ListRoomsRequest represents a list rooms request.
type ListRoomsRequest struct{}

// DeleteRoomRequest represents a room deletion request.
type DeleteRoomRequest struct {
	ID        string `json:"id"`
	Requester string `json:"requester"`
}

// RoomResponse carries one room or a classified error.
type RoomResponse struct {
	Room      *RoomView `json:"room,omitempty"`
	ErrorKind room.Kind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// ListRoomsResponse carries all rooms.
type ListRoomsResponse struct {
	Rooms []RoomView `json:"rooms"`
	Error string     `json:"error,omitempty"`
}

// DeleteRoomResponse carries the outcome of a deletion.
type DeleteRoomResponse struct {
	Deleted   bool      `json:"deleted"`
	ErrorKind room.Kind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
}
