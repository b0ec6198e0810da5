package models

import "github.com/google/uuid"

// Poll is a multi-option poll embedded in a message.
type Poll struct {
	ID          uuid.UUID    `json:"id"`
	Question    string       `json:"question"`
	MultiSelect bool         `json:"multi_select"`
	Options     []PollOption `json:"options"`
}

// PollOption is one choice with its current voters.
type PollOption struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
	Votes []Vote    `json:"votes"`
}

// Vote records one participant's vote on an option. For single-select polls
// a participant appears in at most one option's votes at any time.
type Vote struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
}

// PollUpdate is the poll_update event payload: the full option/vote
// structure for the poll on one message, replacing whatever clients hold.
type PollUpdate struct {
	MessageID uuid.UUID `json:"message_id"`
	Poll      *Poll     `json:"poll"`
}
