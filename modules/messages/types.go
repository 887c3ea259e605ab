package messages

import (
	"time"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/message"
)

// Service names exposed by the messages module.
const (
	ServiceAppend = "message-append"
	ServiceList   = "message-list"
)

// AppendRequest represents a direct message to store.
type AppendRequest struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// AppendResponse returns the stored message.
type AppendResponse struct {
	Message *message.Message `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// ListRequest asks for a user's log.
type ListRequest struct {
	UserID string `json:"uid"`
	Limit  int    `json:"limit"`
}

// ListResponse carries a user's log.
type ListResponse struct {
	Messages []message.Message `json:"messages"`
}
