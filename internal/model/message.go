package model

import "time"

// GuestMessage is a note left on the message wall.
//
// The wall only ever shows messages that are both Approved and IsPublic.
// Messages are approved at creation; no moderation step exists.
type GuestMessage struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"userId,omitempty"`
	Name      *string   `json:"name"`
	Message   string    `json:"message"`
	MediaURL  *string   `json:"mediaUrl"`
	IsPublic  bool      `json:"isPublic"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"createdAt"`
}

// Visible reports whether the message may appear on the public wall.
func (m *GuestMessage) Visible() bool {
	return m.Approved && m.IsPublic
}
