package models

import (
	"time"

	"github.com/google/uuid"
)

// Room represents a conversation room (one per challenge or group space).
type Room struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is a roster entry: the read-only input to mention autocomplete.
// Roster order is join order and is stable across requests.
type Member struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
}
