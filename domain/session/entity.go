// Package session holds the presence record kept per session id.
package session

// Status is the connection status of a session.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusOnline || s == StatusOffline
}

// Session is the presence record of one user.
type Session struct {
	UserID   string `json:"uid,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Status   Status `json:"status,omitempty"`
}

// Update is a partial write. Nil fields are left untouched.
type Update struct {
	UserID   *string `json:"uid,omitempty"`
	Nickname *string `json:"nickname,omitempty"`
	Status   *Status `json:"status,omitempty"`
}

// Fields returns the hash fields carried by u.
func (u Update) Fields() map[string]any {
	fields := make(map[string]any, 3)
	if u.UserID != nil {
		fields["uid"] = *u.UserID
	}
	if u.Nickname != nil {
		fields["nickname"] = *u.Nickname
	}
	if u.Status != nil {
		fields["status"] = string(*u.Status)
	}
	return fields
}

// FromFields builds a Session from stored hash fields.
func FromFields(fields map[string]string) *Session {
	return &Session{
		UserID:   fields["uid"],
		Nickname: fields["nickname"],
		Status:   Status(fields["status"]),
	}
}

// String returns a pointer to v, for building an Update.
func String(v string) *string {
	return &v
}

// StatusPtr returns a pointer to s, for building an Update.
func StatusPtr(s Status) *Status {
	return &s
}
