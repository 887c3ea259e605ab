package session

import domain "github.com/SWM-FIRE/modoco-backend-sub000/domain/session"

// Service names exposed by the session module.
const (
	ServiceFind = "session-find"
	ServiceSave = "session-save"
)

// FindRequest represents a session lookup.
type FindRequest struct {
	ID string `json:"id"`
}

// FindResponse carries a session if it exists.
type FindResponse struct {
	Found   bool            `json:"found"`
	Session *domain.Session `json:"session,omitempty"`
}

// SaveRequest represents a partial session write.
type SaveRequest struct {
	ID     string        `json:"id"`
	Update domain.Update `json:"update"`
}

// SaveResponse acknowledges a write.
type SaveResponse struct {
	Saved bool   `json:"saved"`
	Error string `json:"error,omitempty"`
}
