package gateway

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/SWM-FIRE/modoco-backend-sub000/modules/coordinator"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/messages"
)

const maxChatLength = 1000

var errMissingRoom = errors.New("room is required")

// JoinRoom is the joinRoom payload.
type JoinRoom struct {
	Room string `json:"room"`
	UID  string `json:"uid"`
}

func (p JoinRoom) Validate() error {
	if p.Room == "" {
		return errMissingRoom
	}
	return nil
}

// LeaveRoom is the leaveRoom payload.
type LeaveRoom struct {
	Room string `json:"room"`
}

func (p LeaveRoom) Validate() error {
	if p.Room == "" {
		return errMissingRoom
	}
	return nil
}

// KickUser is the kickUser payload.
type KickUser struct {
	Room       string                 `json:"room"`
	UserToKick coordinator.KickTarget `json:"userToKick"`
}

func (p KickUser) Validate() error {
	if p.Room == "" {
		return errMissingRoom
	}
	if p.UserToKick.ConnectionID == "" {
		return errors.New("userToKick.connectionId is required")
	}
	return nil
}

// ChatMessage is the chatMessage payload. Sender and CreatedAt are passed
// through to the room untouched.
type ChatMessage struct {
	Room      string          `json:"room"`
	Sender    json.RawMessage `json:"sender,omitempty"`
	Message   string          `json:"message"`
	CreatedAt json.RawMessage `json:"createdAt,omitempty"`
}

func (p ChatMessage) Validate() error {
	if p.Room == "" {
		return errMissingRoom
	}
	if p.Message == "" {
		return errors.New("message is required")
	}
	if len(p.Message) > maxChatLength {
		return errors.New("message is too long")
	}
	return nil
}

// MediaStateChange is the videoStateChange / audioStateChange payload.
type MediaStateChange struct {
	Room    string `json:"room"`
	Enabled *bool  `json:"enabled"`
}

func (p MediaStateChange) Validate() error {
	if p.Room == "" {
		return errMissingRoom
	}
	if p.Enabled == nil {
		return errors.New("enabled is required")
	}
	return nil
}

// GetRooms is the getRooms payload.
type GetRooms struct{}

func (GetRooms) Validate() error { return nil }

// DirectMessage is the directMessage payload.
type DirectMessage struct {
	To        string    `json:"to"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p DirectMessage) Validate() error {
	if p.To == "" {
		return errors.New("to is required")
	}
	if p.Message == "" {
		return errors.New("message is required")
	}
	if len(p.Message) > messages.MaxMessageLength {
		return errors.New("message is too long")
	}
	return nil
}

// MessageHistory is the messageHistory payload.
type MessageHistory struct {
	Limit int `json:"limit"`
}

func (p MessageHistory) Validate() error {
	if p.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}
