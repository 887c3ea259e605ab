// Package room holds the room domain types shared by the coordinator,
// the membership store and the room metadata collaborator.
package room

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// MaxCapacity is the largest number of members a room may hold.
const MaxCapacity = 16

// Room is the metadata record of a room. Capacity and moderator are read by
// the core; title, tags and theme are display data only.
type Room struct {
	ID           string         `gorm:"primarykey;size:36" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Title        string         `gorm:"size:100;not null" json:"title"`
	Details      string         `gorm:"size:500" json:"details"`
	Tags         string         `gorm:"size:255" json:"-"`
	Theme        string         `gorm:"size:50" json:"theme"`
	Capacity     int            `gorm:"not null" json:"total"`
	ModeratorUID string         `gorm:"size:64;not null;index" json:"moderator"`
}

// TableName returns the table name for Room model.
func (Room) TableName() string {
	return "rooms"
}

// TagList splits the stored comma separated tags.
func (r *Room) TagList() []string {
	if r.Tags == "" {
		return []string{}
	}
	return strings.Split(r.Tags, ",")
}

// SetTags stores tags as a comma separated string.
func (r *Room) SetTags(tags []string) {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			clean = append(clean, t)
		}
	}
	r.Tags = strings.Join(clean, ",")
}

// Record is the shared membership view of a room.
// Invariant: 0 <= Current <= Total after every committed mutation.
type Record struct {
	RoomID    string `json:"room"`
	Total     int    `json:"total"`
	Current   int    `json:"current"`
	Moderator string `json:"moderator"`
}

// Full reports whether the room has no free slot.
func (r Record) Full() bool {
	return r.Current >= r.Total
}

// Member identifies one connection subscribed to a room.
type Member struct {
	SID string `json:"sid"`
	UID string `json:"uid"`
}
