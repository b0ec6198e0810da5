package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloomcircle/backend/internal/models"
	"github.com/bloomcircle/backend/internal/realtime"
)

type fakeAPI struct {
	mu      sync.Mutex
	history []models.Message
	roster  []models.Member
	sendFn  func(body string, replyTo *uuid.UUID) (*models.Message, error)
	reactFn func(messageID uuid.UUID, emoji string) (*models.ReactionUpdate, error)
	pollFn  func(question string, options []string, multiSelect bool) (*models.Message, error)
	voteFn  func(optionID uuid.UUID) (*models.PollUpdate, error)
}

func (f *fakeAPI) LoadMessages(_ context.Context, _ uuid.UUID) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message(nil), f.history...), nil
}

func (f *fakeAPI) ListMembers(_ context.Context, _ uuid.UUID) ([]models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Member(nil), f.roster...), nil
}

func (f *fakeAPI) SendMessage(_ context.Context, roomID uuid.UUID, body string, replyTo *uuid.UUID) (*models.Message, error) {
	if f.sendFn != nil {
		return f.sendFn(body, replyTo)
	}
	m := models.Message{ID: uuid.New(), RoomID: roomID, Body: &body, Kind: models.KindUser}
	return &m, nil
}

func (f *fakeAPI) ToggleReaction(_ context.Context, messageID uuid.UUID, emoji string) (*models.ReactionUpdate, error) {
	if f.reactFn != nil {
		return f.reactFn(messageID, emoji)
	}
	return &models.ReactionUpdate{MessageID: messageID, Reactions: []models.Reaction{}}, nil
}

func (f *fakeAPI) CreatePoll(_ context.Context, roomID uuid.UUID, question string, options []string, multiSelect bool) (*models.Message, error) {
	if f.pollFn != nil {
		return f.pollFn(question, options, multiSelect)
	}
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) ToggleVote(_ context.Context, optionID uuid.UUID) (*models.PollUpdate, error) {
	if f.voteFn != nil {
		return f.voteFn(optionID)
	}
	return nil, errors.New("not implemented")
}

type fakeTransport struct {
	events    chan Event
	typing    int32
	closed    int32
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan Event, 16)}
}

func (f *fakeTransport) Events() <-chan Event { return f.events }

func (f *fakeTransport) SendTyping() error {
	atomic.AddInt32(&f.typing, 1)
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() {
		atomic.StoreInt32(&f.closed, 1)
		close(f.events)
	})
	return nil
}

func (f *fakeTransport) push(t *testing.T, kind string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	f.events <- Event{Kind: kind, Data: raw}
}

func startSession(t *testing.T, api *fakeAPI, transport *fakeTransport, cfg Config) *Session {
	t.Helper()
	if cfg.RoomID == uuid.Nil {
		cfg.RoomID = uuid.New()
	}
	if cfg.SelfID == uuid.Nil {
		cfg.SelfID = uuid.New()
	}
	s := NewSession(api, transport, cfg)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestSessionOptimisticSendResolves(t *testing.T) {
	api := &fakeAPI{}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{})

	tempID := s.Send(context.Background(), "hello", nil)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Pending || !msgs[0].ID.Provisional())
	assert.NotEmpty(t, tempID)

	waitFor(t, func() bool {
		m := s.Messages()
		return len(m) == 1 && !m[0].Pending && !m[0].ID.Provisional()
	})
	assert.Equal(t, "hello", s.Messages()[0].Body)
}

func TestSessionSendRollbackOnFailure(t *testing.T) {
	var failedTemp string
	var failedErr error
	var mu sync.Mutex

	api := &fakeAPI{
		sendFn: func(string, *uuid.UUID) (*models.Message, error) {
			return nil, errors.New("boom")
		},
	}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{
		OnSendFailed: func(tempID string, err error) {
			mu.Lock()
			failedTemp, failedErr = tempID, err
			mu.Unlock()
		},
	})

	tempID := s.Send(context.Background(), "doomed", nil)
	waitFor(t, func() bool { return s.conv.Len() == 0 })

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, tempID, failedTemp)
	assert.Error(t, failedErr)
}

func TestSessionDropsOwnBroadcast(t *testing.T) {
	self := uuid.New()
	api := &fakeAPI{}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{SelfID: self})

	s.Send(context.Background(), "mine", nil)
	waitFor(t, func() bool {
		m := s.Messages()
		return len(m) == 1 && !m[0].ID.Provisional()
	})
	durable := s.Messages()[0]

	// the server echoes the send back over the channel
	body := durable.Body
	tr.push(t, realtime.EventNewMessage, models.Message{
		ID: durable.ID.Durable(), AuthorID: &self, Body: &body, Kind: models.KindUser,
	})
	// and an unrelated peer message right after
	peer := uuid.New()
	peerBody := "theirs"
	tr.push(t, realtime.EventNewMessage, models.Message{
		ID: uuid.New(), AuthorID: &peer, Body: &peerBody, Kind: models.KindUser,
	})

	waitFor(t, func() bool { return s.conv.Len() == 2 })
	msgs := s.Messages()
	assert.Equal(t, "mine", msgs[0].Body)
	assert.Equal(t, "theirs", msgs[1].Body)
}

func TestSessionReplySnapshotIsByValue(t *testing.T) {
	original := durableMsg("original text")
	api := &fakeAPI{history: []models.Message{original}}
	api.sendFn = func(body string, replyTo *uuid.UUID) (*models.Message, error) {
		// server would copy the snapshot the same way
		m := models.Message{
			ID: uuid.New(), Body: &body, Kind: models.KindUser,
			ReplyTo: &models.ReplySnapshot{MessageID: *replyTo, Body: "original text", AuthorName: original.AuthorName},
		}
		return &m, nil
	}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{})

	s.Send(context.Background(), "replying", &original.ID)

	// the in-flight provisional already shows the quoted body
	msgs := s.Messages()
	require.Len(t, msgs, 2)
	require.NotNil(t, msgs[1].ReplyTo)
	assert.Equal(t, "original text", msgs[1].ReplyTo.Body)

	waitFor(t, func() bool {
		m := s.Messages()
		return !m[1].ID.Provisional()
	})
	assert.Equal(t, "original text", s.Messages()[1].ReplyTo.Body)
}

func TestSessionReactionToggleAppliesSnapshot(t *testing.T) {
	target := durableMsg("react")
	me := models.Reaction{UserID: uuid.New(), Emoji: "❤️", DisplayName: "Me"}
	api := &fakeAPI{history: []models.Message{target}}
	api.reactFn = func(messageID uuid.UUID, emoji string) (*models.ReactionUpdate, error) {
		return &models.ReactionUpdate{MessageID: messageID, Reactions: []models.Reaction{me}}, nil
	}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{})

	require.NoError(t, s.ToggleReaction(context.Background(), target.ID, "❤️"))
	require.Len(t, s.Messages()[0].Reactions, 1)

	// the broadcast snapshot lands afterwards and converges, not doubles
	tr.push(t, realtime.EventReactionUpdate, models.ReactionUpdate{
		MessageID: target.ID, Reactions: []models.Reaction{me},
	})
	waitFor(t, func() bool { return len(s.Messages()[0].Reactions) == 1 })
}

func TestSessionPollVoteAppliesSnapshot(t *testing.T) {
	author := uuid.New()
	opt := uuid.New()
	carrier := models.Message{
		ID: uuid.New(), AuthorID: &author, Kind: models.KindUser,
		Poll: &models.Poll{
			ID:      uuid.New(),
			Options: []models.PollOption{{ID: opt, Label: "yes", Votes: []models.Vote{}}},
		},
	}
	api := &fakeAPI{history: []models.Message{carrier}}
	api.voteFn = func(optionID uuid.UUID) (*models.PollUpdate, error) {
		return &models.PollUpdate{
			MessageID: carrier.ID,
			Poll: &models.Poll{
				ID:      carrier.Poll.ID,
				Options: []models.PollOption{{ID: opt, Label: "yes", Votes: []models.Vote{{DisplayName: "Me"}}}},
			},
		}, nil
	}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{})

	require.NoError(t, s.ToggleVote(context.Background(), opt))
	assert.Len(t, s.Messages()[0].Poll.Options[0].Votes, 1)
}

func TestSessionTypingEvents(t *testing.T) {
	self := uuid.New()
	api := &fakeAPI{}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{
		SelfID:       self,
		TypingExpiry: 50 * time.Millisecond,
	})

	// own typing echo never shows up
	tr.push(t, realtime.EventTyping, models.TypingEvent{UserID: self, DisplayName: "Me"})
	tr.push(t, realtime.EventTyping, models.TypingEvent{UserID: uuid.New(), DisplayName: "Alice"})

	waitFor(t, func() bool {
		names := s.TypingNames()
		return len(names) == 1 && names[0] == "Alice"
	})

	// quiet typists expire
	waitFor(t, func() bool { return len(s.TypingNames()) == 0 })
}

func TestSessionKeystrokeThrottle(t *testing.T) {
	api := &fakeAPI{}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{TypingThrottle: time.Hour})

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Keystroke())
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tr.typing))
}

func TestSessionArrivalWhileScrolledUp(t *testing.T) {
	api := &fakeAPI{}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{})

	s.Scroll().SetPosition(false)

	peer := uuid.New()
	body := "while you were away"
	tr.push(t, realtime.EventNewMessage, models.Message{
		ID: uuid.New(), AuthorID: &peer, Body: &body, Kind: models.KindUser,
	})
	waitFor(t, func() bool { return s.Scroll().Unseen() == 1 })
	assert.False(t, s.Scroll().AtBottom())

	// scrolling back down clears the indicator
	s.Scroll().SetPosition(true)
	assert.Zero(t, s.Scroll().Unseen())
}

func TestSessionCloseIsIdempotentAndDrains(t *testing.T) {
	api := &fakeAPI{}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{})

	s.Send(context.Background(), "last words", nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, int32(1), atomic.LoadInt32(&tr.closed))

	// all sends settled before Close returned
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].Pending)
}

func TestSessionSendRejectsBlankBody(t *testing.T) {
	api := &fakeAPI{}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{})

	assert.Empty(t, s.Send(context.Background(), "   ", nil))
	assert.Zero(t, s.conv.Len())
}

func TestSessionReactionRollbackOnFailure(t *testing.T) {
	target := durableMsg("target")
	api := &fakeAPI{history: []models.Message{target}}
	api.reactFn = func(uuid.UUID, string) (*models.ReactionUpdate, error) {
		return nil, errors.New("down")
	}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{})

	err := s.ToggleReaction(context.Background(), target.ID, "👍")
	require.Error(t, err)
	assert.Empty(t, s.Messages()[0].Reactions)
}

func TestSessionVoteRollbackOnFailure(t *testing.T) {
	author := uuid.New()
	opt := uuid.New()
	carrier := models.Message{
		ID: uuid.New(), AuthorID: &author, Kind: models.KindUser,
		Poll: &models.Poll{
			ID:      uuid.New(),
			Options: []models.PollOption{{ID: opt, Label: "yes", Votes: []models.Vote{}}},
		},
	}
	api := &fakeAPI{history: []models.Message{carrier}}
	api.voteFn = func(uuid.UUID) (*models.PollUpdate, error) {
		return nil, errors.New("down")
	}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{})

	err := s.ToggleVote(context.Background(), opt)
	require.Error(t, err)
	assert.Empty(t, s.Messages()[0].Poll.Options[0].Votes)
}

func TestSessionPollUpdateWithoutPollKeepsView(t *testing.T) {
	carrier, _ := pollCarrier(false, "Red", "Blue")
	api := &fakeAPI{history: []models.Message{carrier}}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{})

	tr.push(t, realtime.EventPollUpdate, models.PollUpdate{MessageID: carrier.ID})
	// a follow-up message proves the bad event has been consumed
	peer := uuid.New()
	body := "still here"
	tr.push(t, realtime.EventNewMessage, models.Message{
		ID: uuid.New(), AuthorID: &peer, Body: &body, Kind: models.KindUser,
	})

	waitFor(t, func() bool { return s.conv.Len() == 2 })
	require.NotNil(t, s.Messages()[0].Poll)
	assert.Len(t, s.Messages()[0].Poll.Options, 2)
}

func TestSessionTypingRequiresDisplayName(t *testing.T) {
	api := &fakeAPI{}
	tr := newFakeTransport()
	s := startSession(t, api, tr, Config{TypingExpiry: time.Hour})

	tr.push(t, realtime.EventTyping, models.TypingEvent{UserID: uuid.New()})
	tr.push(t, realtime.EventTyping, models.TypingEvent{UserID: uuid.New(), DisplayName: "Ada"})

	waitFor(t, func() bool { return len(s.TypingNames()) == 1 })
	assert.Equal(t, []string{"Ada"}, s.TypingNames())
}
