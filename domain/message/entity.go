// Package message holds direct message records.
package message

import "time"

// Message is one direct message between two users.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Participants returns the user ids whose logs receive a copy of m.
// A message to oneself is stored once.
func (m Message) Participants() []string {
	if m.From == m.To {
		return []string{m.From}
	}
	return []string{m.From, m.To}
}
