package chatsync

import (
	"sync"

	"github.com/google/uuid"

	"github.com/bloomcircle/backend/internal/models"
)

// Conversation is the ordered, mutex-guarded message view of one room.
// Order is append order: history first, then arrivals and optimistic sends
// as they happen. A provisional entry keeps its position when the server
// acknowledgement replaces it in place.
type Conversation struct {
	mu      sync.Mutex
	entries []*Message
	byKey   map[string]*Message // MessageID.String() -> entry
}

// NewConversation creates an empty conversation view.
func NewConversation() *Conversation {
	return &Conversation{byKey: make(map[string]*Message)}
}

// Reset replaces the whole view with server history.
func (c *Conversation) Reset(history []models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = c.entries[:0]
	c.byKey = make(map[string]*Message, len(history))
	for _, m := range history {
		entry := fromModel(m)
		c.appendLocked(&entry)
	}
}

// Append adds a message to the end of the view. Appending a durable ID that
// is already present is a no-op, which makes channel delivery idempotent.
func (c *Conversation) Append(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byKey[msg.ID.String()]; ok {
		return false
	}
	c.appendLocked(&msg)
	return true
}

func (c *Conversation) appendLocked(msg *Message) {
	c.entries = append(c.entries, msg)
	c.byKey[msg.ID.String()] = msg
}

// ResolveProvisional swaps a provisional entry for its acknowledged form in
// place, preserving position. Returns false when the temp ID is unknown
// (already resolved or rolled back).
func (c *Conversation) ResolveProvisional(tempID string, ack models.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.byKey[tempID]
	if !ok {
		return false
	}
	delete(c.byKey, tempID)
	resolved := fromModel(ack)
	*entry = resolved
	c.byKey[entry.ID.String()] = entry
	return true
}

// RemoveProvisional rolls back a failed optimistic send.
func (c *Conversation) RemoveProvisional(tempID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.byKey[tempID]
	if !ok {
		return false
	}
	delete(c.byKey, tempID)
	for i, e := range c.entries {
		if e == entry {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			break
		}
	}
	return true
}

// ToggleReaction applies one local tap under the one-reaction-per-
// participant rule: no existing reaction appends, tapping the held emoji
// removes, a different emoji replaces in place. Provisional messages are
// not reactable. Returns the pre-toggle collection for rollback.
func (c *Conversation) ToggleReaction(messageID uuid.UUID, r models.Reaction) (prev []models.Reaction, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, found := c.byKey[messageID.String()]
	if !found {
		return nil, false
	}
	prev = append([]models.Reaction(nil), entry.Reactions...)
	for i := range entry.Reactions {
		if entry.Reactions[i].UserID != r.UserID {
			continue
		}
		if entry.Reactions[i].Emoji == r.Emoji {
			entry.Reactions = append(entry.Reactions[:i], entry.Reactions[i+1:]...)
		} else {
			entry.Reactions[i].Emoji = r.Emoji
		}
		return prev, true
	}
	entry.Reactions = append(entry.Reactions, r)
	return prev, true
}

// ToggleVote applies one local vote tap. Tapping a held option removes the
// vote; otherwise the vote is added and, on single-select polls, the
// participant's votes on sibling options are cleared in the same step.
// Returns a deep copy of the pre-toggle poll for rollback.
func (c *Conversation) ToggleVote(messageID, optionID uuid.UUID, v models.Vote) (prev *models.Poll, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, found := c.byKey[messageID.String()]
	if !found || entry.Poll == nil {
		return nil, false
	}
	prev = clonePoll(entry.Poll)

	var target *models.PollOption
	for i := range entry.Poll.Options {
		if entry.Poll.Options[i].ID == optionID {
			target = &entry.Poll.Options[i]
			break
		}
	}
	if target == nil {
		return nil, false
	}

	for i := range target.Votes {
		if target.Votes[i].UserID == v.UserID {
			target.Votes = append(target.Votes[:i], target.Votes[i+1:]...)
			return prev, true
		}
	}
	if !entry.Poll.MultiSelect {
		for i := range entry.Poll.Options {
			opt := &entry.Poll.Options[i]
			if opt.ID == optionID {
				continue
			}
			for j := range opt.Votes {
				if opt.Votes[j].UserID == v.UserID {
					opt.Votes = append(opt.Votes[:j], opt.Votes[j+1:]...)
					break
				}
			}
		}
	}
	target.Votes = append(target.Votes, v)
	return prev, true
}

// FindPollOption locates the message carrying a poll option.
func (c *Conversation) FindPollOption(optionID uuid.UUID) (messageID uuid.UUID, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.Poll == nil {
			continue
		}
		for _, o := range e.Poll.Options {
			if o.ID == optionID {
				if e.ID.Provisional() {
					return uuid.Nil, false
				}
				return e.ID.Durable(), true
			}
		}
	}
	return uuid.Nil, false
}

func clonePoll(p *models.Poll) *models.Poll {
	out := &models.Poll{ID: p.ID, Question: p.Question, MultiSelect: p.MultiSelect}
	out.Options = make([]models.PollOption, len(p.Options))
	for i, o := range p.Options {
		out.Options[i] = models.PollOption{ID: o.ID, Label: o.Label}
		out.Options[i].Votes = append([]models.Vote(nil), o.Votes...)
	}
	return out
}

// ApplyReactionUpdate overwrites a message's reaction collection. Updates
// are full snapshots, so applying the same one twice converges.
func (c *Conversation) ApplyReactionUpdate(u models.ReactionUpdate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.byKey[u.MessageID.String()]
	if !ok {
		return false
	}
	if u.Reactions == nil {
		entry.Reactions = []models.Reaction{}
	} else {
		entry.Reactions = u.Reactions
	}
	return true
}

// ApplyPollUpdate overwrites a message's poll state with a full snapshot.
// An update without a poll payload is dropped, never applied as a wipe.
func (c *Conversation) ApplyPollUpdate(u models.PollUpdate) bool {
	if u.Poll == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.byKey[u.MessageID.String()]
	if !ok || entry.Poll == nil {
		return false
	}
	entry.Poll = u.Poll
	return true
}

// ContainsDurable reports whether a server message ID is already in view.
func (c *Conversation) ContainsDurable(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byKey[id.String()]
	return ok
}

// Messages returns a snapshot copy of the view in order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.entries))
	for i, e := range c.entries {
		out[i] = *e
	}
	return out
}

// Len returns the number of entries in view.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
