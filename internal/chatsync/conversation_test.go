package chatsync

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloomcircle/backend/internal/models"
)

func durableMsg(body string) models.Message {
	author := uuid.New()
	return models.Message{
		ID:       uuid.New(),
		RoomID:   uuid.New(),
		AuthorID: &author,
		Body:     &body,
		Kind:     models.KindUser,
	}
}

func TestConversationAppendDeduplicates(t *testing.T) {
	c := NewConversation()
	m := durableMsg("hello")

	assert.True(t, c.Append(fromModel(m)))
	assert.False(t, c.Append(fromModel(m)))
	assert.Equal(t, 1, c.Len())
}

func TestConversationResolveProvisionalKeepsPosition(t *testing.T) {
	c := NewConversation()
	c.Append(fromModel(durableMsg("first")))

	temp := NewTempID()
	c.Append(Message{ID: ProvisionalID(temp), Body: "mine", Pending: true})
	c.Append(fromModel(durableMsg("third")))

	ack := durableMsg("mine")
	require.True(t, c.ResolveProvisional(temp, ack))

	msgs := c.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "mine", msgs[1].Body)
	assert.False(t, msgs[1].Pending)
	assert.False(t, msgs[1].ID.Provisional())
	assert.Equal(t, ack.ID, msgs[1].ID.Durable())
	assert.True(t, c.ContainsDurable(ack.ID))

	// second resolution is a no-op
	assert.False(t, c.ResolveProvisional(temp, ack))
}

func TestConversationRemoveProvisional(t *testing.T) {
	c := NewConversation()
	temp := NewTempID()
	c.Append(Message{ID: ProvisionalID(temp), Body: "doomed", Pending: true})

	require.True(t, c.RemoveProvisional(temp))
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.RemoveProvisional(temp))
}

func TestConversationReactionUpdateOverwrites(t *testing.T) {
	c := NewConversation()
	m := durableMsg("react to me")
	c.Append(fromModel(m))

	alice := models.Reaction{UserID: uuid.New(), Emoji: "👍", DisplayName: "Alice"}
	bob := models.Reaction{UserID: uuid.New(), Emoji: "🎉", DisplayName: "Bob"}

	require.True(t, c.ApplyReactionUpdate(models.ReactionUpdate{
		MessageID: m.ID, Reactions: []models.Reaction{alice, bob},
	}))
	assert.Len(t, c.Messages()[0].Reactions, 2)

	// full snapshot replaces, never merges
	require.True(t, c.ApplyReactionUpdate(models.ReactionUpdate{
		MessageID: m.ID, Reactions: []models.Reaction{bob},
	}))
	got := c.Messages()[0].Reactions
	require.Len(t, got, 1)
	assert.Equal(t, "Bob", got[0].DisplayName)

	require.True(t, c.ApplyReactionUpdate(models.ReactionUpdate{MessageID: m.ID}))
	assert.Empty(t, c.Messages()[0].Reactions)

	assert.False(t, c.ApplyReactionUpdate(models.ReactionUpdate{MessageID: uuid.New()}))
}

func TestConversationPollUpdateOverwrites(t *testing.T) {
	c := NewConversation()
	author := uuid.New()
	optA, optB := uuid.New(), uuid.New()
	m := models.Message{
		ID:       uuid.New(),
		AuthorID: &author,
		Kind:     models.KindUser,
		Poll: &models.Poll{
			ID:       uuid.New(),
			Question: "tea or coffee?",
			Options: []models.PollOption{
				{ID: optA, Label: "tea", Votes: []models.Vote{}},
				{ID: optB, Label: "coffee", Votes: []models.Vote{}},
			},
		},
	}
	c.Append(fromModel(m))

	voter := models.Vote{UserID: uuid.New(), DisplayName: "Alice"}
	update := models.PollUpdate{
		MessageID: m.ID,
		Poll: &models.Poll{
			ID:       m.Poll.ID,
			Question: m.Poll.Question,
			Options: []models.PollOption{
				{ID: optA, Label: "tea", Votes: []models.Vote{voter}},
				{ID: optB, Label: "coffee", Votes: []models.Vote{}},
			},
		},
	}
	require.True(t, c.ApplyPollUpdate(update))

	got := c.Messages()[0].Poll
	require.NotNil(t, got)
	assert.Len(t, got.Options[0].Votes, 1)
	assert.Empty(t, got.Options[1].Votes)

	// updates for plain messages are ignored
	plain := durableMsg("no poll here")
	c.Append(fromModel(plain))
	assert.False(t, c.ApplyPollUpdate(models.PollUpdate{MessageID: plain.ID, Poll: update.Poll}))
}

func TestConversationReset(t *testing.T) {
	c := NewConversation()
	c.Append(fromModel(durableMsg("stale")))

	fresh := []models.Message{durableMsg("a"), durableMsg("b")}
	c.Reset(fresh)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Body)
	assert.Equal(t, "b", msgs[1].Body)
}

func TestToggleReactionSequence(t *testing.T) {
	c := NewConversation()
	m := durableMsg("target")
	c.Append(fromModel(m))

	p := models.Reaction{UserID: uuid.New(), DisplayName: "P"}

	tap := func(emoji string) []models.Reaction {
		p.Emoji = emoji
		_, ok := c.ToggleReaction(m.ID, p)
		require.True(t, ok)
		return c.Messages()[0].Reactions
	}

	// none -> add
	got := tap("👍")
	require.Len(t, got, 1)
	assert.Equal(t, "👍", got[0].Emoji)

	// different emoji -> replace in place, never two rows for one participant
	got = tap("🎉")
	require.Len(t, got, 1)
	assert.Equal(t, "🎉", got[0].Emoji)

	// same emoji -> remove
	got = tap("🎉")
	assert.Empty(t, got)

	_, ok := c.ToggleReaction(uuid.New(), p)
	assert.False(t, ok)
}

func TestToggleReactionReturnsRollbackState(t *testing.T) {
	c := NewConversation()
	m := durableMsg("target")
	c.Append(fromModel(m))

	p := models.Reaction{UserID: uuid.New(), Emoji: "👍"}
	prev, ok := c.ToggleReaction(m.ID, p)
	require.True(t, ok)
	assert.Empty(t, prev)

	require.True(t, c.ApplyReactionUpdate(models.ReactionUpdate{MessageID: m.ID, Reactions: prev}))
	assert.Empty(t, c.Messages()[0].Reactions)
}

func pollCarrier(multiSelect bool, labels ...string) (models.Message, []uuid.UUID) {
	author := uuid.New()
	p := &models.Poll{ID: uuid.New(), Question: "?", MultiSelect: multiSelect}
	var optIDs []uuid.UUID
	for _, l := range labels {
		id := uuid.New()
		p.Options = append(p.Options, models.PollOption{ID: id, Label: l, Votes: []models.Vote{}})
		optIDs = append(optIDs, id)
	}
	return models.Message{ID: uuid.New(), AuthorID: &author, Kind: models.KindUser, Poll: p}, optIDs
}

func TestToggleVoteSingleSelectMovesVote(t *testing.T) {
	c := NewConversation()
	m, opts := pollCarrier(false, "Red", "Blue")
	c.Append(fromModel(m))

	v := models.Vote{UserID: uuid.New(), DisplayName: "P"}

	_, ok := c.ToggleVote(m.ID, opts[0], v)
	require.True(t, ok)
	_, ok = c.ToggleVote(m.ID, opts[1], v)
	require.True(t, ok)

	poll := c.Messages()[0].Poll
	assert.Empty(t, poll.Options[0].Votes)
	require.Len(t, poll.Options[1].Votes, 1)
	assert.Equal(t, v.UserID, poll.Options[1].Votes[0].UserID)
}

func TestToggleVoteMultiSelectKeepsBoth(t *testing.T) {
	c := NewConversation()
	m, opts := pollCarrier(true, "Red", "Blue")
	c.Append(fromModel(m))

	v := models.Vote{UserID: uuid.New()}
	c.ToggleVote(m.ID, opts[0], v)
	c.ToggleVote(m.ID, opts[1], v)

	poll := c.Messages()[0].Poll
	assert.Len(t, poll.Options[0].Votes, 1)
	assert.Len(t, poll.Options[1].Votes, 1)

	// tapping a held option removes only that vote
	c.ToggleVote(m.ID, opts[0], v)
	poll = c.Messages()[0].Poll
	assert.Empty(t, poll.Options[0].Votes)
	assert.Len(t, poll.Options[1].Votes, 1)
}

func TestToggleVoteRollbackIsDeepCopy(t *testing.T) {
	c := NewConversation()
	m, opts := pollCarrier(false, "Red", "Blue")
	c.Append(fromModel(m))

	v := models.Vote{UserID: uuid.New()}
	prev, ok := c.ToggleVote(m.ID, opts[0], v)
	require.True(t, ok)
	assert.Empty(t, prev.Options[0].Votes)

	require.True(t, c.ApplyPollUpdate(models.PollUpdate{MessageID: m.ID, Poll: prev}))
	assert.Empty(t, c.Messages()[0].Poll.Options[0].Votes)
}

func TestFindPollOption(t *testing.T) {
	c := NewConversation()
	m, opts := pollCarrier(false, "Red")
	c.Append(fromModel(m))

	messageID, ok := c.FindPollOption(opts[0])
	require.True(t, ok)
	assert.Equal(t, m.ID, messageID)

	_, ok = c.FindPollOption(uuid.New())
	assert.False(t, ok)
}

func TestConversationPollUpdateWithoutPollIsDropped(t *testing.T) {
	c := NewConversation()
	m, _ := pollCarrier(false, "Red", "Blue")
	c.Append(fromModel(m))

	// a snapshot with no poll payload must not wipe the poll
	assert.False(t, c.ApplyPollUpdate(models.PollUpdate{MessageID: m.ID}))

	got := c.Messages()[0].Poll
	require.NotNil(t, got)
	assert.Len(t, got.Options, 2)
}
