package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a mention alert produced by the worker when a message
// names a roster member.
type Notification struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	RoomID     uuid.UUID `json:"room_id"`
	MessageID  uuid.UUID `json:"message_id"`
	AuthorName string    `json:"author_name"`
	Excerpt    string    `json:"excerpt"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}
