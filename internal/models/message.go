package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind distinguishes user-authored messages from server notices.
type MessageKind string

const (
	KindUser   MessageKind = "user"
	KindSystem MessageKind = "system"
)

// Message is a durable conversation message. AuthorID is nil for system
// messages; Body is nil when the message carries a poll.
type Message struct {
	ID           uuid.UUID      `json:"id"`
	RoomID       uuid.UUID      `json:"room_id"`
	AuthorID     *uuid.UUID     `json:"author_id,omitempty"`
	AuthorName   string         `json:"author_name,omitempty"`
	AuthorAvatar string         `json:"author_avatar,omitempty"`
	Body         *string        `json:"body,omitempty"`
	Kind         MessageKind    `json:"kind"`
	ReplyTo      *ReplySnapshot `json:"reply_to,omitempty"`
	Poll         *Poll          `json:"poll,omitempty"`
	Reactions    []Reaction     `json:"reactions"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ReplySnapshot quotes another message by value: the body and author name
// are copied at send time, so later edits upstream never rewrite the quote.
type ReplySnapshot struct {
	MessageID  uuid.UUID `json:"message_id"`
	Body       string    `json:"body"`
	AuthorName string    `json:"author_name"`
}

// Reaction is one participant's emoji on one message. A participant holds
// at most one reaction per message; picking a new emoji replaces it.
type Reaction struct {
	UserID      uuid.UUID `json:"user_id"`
	Emoji       string    `json:"emoji"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
}

// ReactionUpdate is the reaction_update event payload: the full reaction
// collection for one message, replacing whatever clients hold.
type ReactionUpdate struct {
	MessageID uuid.UUID  `json:"message_id"`
	Reactions []Reaction `json:"reactions"`
}

// TypingEvent is the typing event payload.
type TypingEvent struct {
	RoomID      uuid.UUID `json:"room_id"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
}
