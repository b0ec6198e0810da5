package chatsync

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/bloomcircle/backend/internal/models"
)

// MessageID identifies a message in the conversation view. A provisional ID
// exists only locally, between the optimistic append and the server
// acknowledgement; a durable ID is the server-assigned UUID. At any moment
// exactly one of the two is set.
type MessageID struct {
	temp    string
	durable uuid.UUID
}

// ProvisionalID returns a MessageID for a not-yet-acknowledged message.
func ProvisionalID(temp string) MessageID {
	return MessageID{temp: temp}
}

// DurableID returns a MessageID for a server-acknowledged message.
func DurableID(id uuid.UUID) MessageID {
	return MessageID{durable: id}
}

// Provisional reports whether the ID is a local placeholder.
func (id MessageID) Provisional() bool { return id.temp != "" }

// Durable returns the server UUID; zero for provisional IDs.
func (id MessageID) Durable() uuid.UUID { return id.durable }

// String returns the temp ID or the UUID string, whichever is set.
func (id MessageID) String() string {
	if id.temp != "" {
		return id.temp
	}
	return id.durable.String()
}

// NewTempID mints a provisional message ID. Millisecond timestamp plus a
// random suffix keeps IDs unique across rapid sends in one session.
func NewTempID() string {
	return fmt.Sprintf("tmp-%d-%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

// Message is one entry of the conversation view.
type Message struct {
	ID           MessageID
	RoomID       uuid.UUID
	AuthorID     uuid.UUID
	AuthorName   string
	AuthorAvatar string
	Body         string
	Kind         models.MessageKind
	ReplyTo      *models.ReplySnapshot
	Poll         *models.Poll
	Reactions    []models.Reaction
	CreatedAt    time.Time
	Pending      bool
}

// fromModel converts a server message into a view entry.
func fromModel(m models.Message) Message {
	msg := Message{
		ID:           DurableID(m.ID),
		RoomID:       m.RoomID,
		AuthorName:   m.AuthorName,
		AuthorAvatar: m.AuthorAvatar,
		Kind:         m.Kind,
		ReplyTo:      m.ReplyTo,
		Poll:         m.Poll,
		Reactions:    m.Reactions,
		CreatedAt:    m.CreatedAt,
	}
	if m.AuthorID != nil {
		msg.AuthorID = *m.AuthorID
	}
	if m.Body != nil {
		msg.Body = *m.Body
	}
	if msg.Reactions == nil {
		msg.Reactions = []models.Reaction{}
	}
	return msg
}
