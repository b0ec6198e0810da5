package chatsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bloomcircle/backend/internal/models"
	"github.com/bloomcircle/backend/internal/realtime"
)

// Config carries session identity and tuning.
type Config struct {
	RoomID   uuid.UUID
	SelfID   uuid.UUID
	SelfName string

	// TypingThrottle limits outbound typing signals; TypingExpiry drops
	// remote typists who go quiet.
	TypingThrottle time.Duration
	TypingExpiry   time.Duration

	// OnUpdate fires after any change to the conversation view. Optional.
	OnUpdate func()
	// OnTypingChange receives the active remote typist names. Optional.
	OnTypingChange func([]string)
	// OnSendFailed fires when an optimistic send is rolled back. Optional.
	OnSendFailed func(tempID string, err error)
}

// Session ties one room's conversation view to the server: history load,
// optimistic sends, realtime event dispatch, typing in both directions,
// scroll state and mention autocomplete.
type Session struct {
	cfg       Config
	api       API
	transport Transport

	conv      *Conversation
	scroll    *ScrollManager
	typingOut *TypingThrottle
	typingIn  *TypingTracker
	mentions  *MentionComposer

	rosterMu sync.RWMutex
	roster   []models.Member

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewSession wires a session from its dependencies. Call Start before use.
func NewSession(api API, transport Transport, cfg Config) *Session {
	if cfg.TypingThrottle <= 0 {
		cfg.TypingThrottle = 1500 * time.Millisecond
	}
	if cfg.TypingExpiry <= 0 {
		cfg.TypingExpiry = 2500 * time.Millisecond
	}
	s := &Session{
		cfg:       cfg,
		api:       api,
		transport: transport,
		conv:      NewConversation(),
		scroll:    NewScrollManager(),
		mentions:  NewMentionComposer(nil),
	}
	s.typingOut = NewTypingThrottle(cfg.TypingThrottle, transport.SendTyping)
	s.typingIn = NewTypingTracker(cfg.TypingExpiry, cfg.OnTypingChange)
	return s
}

// Start loads history and the roster, then begins dispatching realtime
// events until the transport closes or Close is called.
func (s *Session) Start(ctx context.Context) error {
	history, err := s.api.LoadMessages(ctx, s.cfg.RoomID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	s.conv.Reset(history)

	roster, err := s.api.ListMembers(ctx, s.cfg.RoomID)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	s.setRoster(roster)

	s.wg.Add(1)
	go s.dispatch()
	s.notifyUpdate()
	return nil
}

// dispatch consumes transport events until the channel closes.
func (s *Session) dispatch() {
	defer s.wg.Done()
	for ev := range s.transport.Events() {
		switch ev.Kind {
		case realtime.EventNewMessage:
			s.onNewMessage(ev.Data)
		case realtime.EventReactionUpdate:
			var u models.ReactionUpdate
			if json.Unmarshal(ev.Data, &u) == nil && s.conv.ApplyReactionUpdate(u) {
				s.notifyUpdate()
			}
		case realtime.EventPollUpdate:
			var u models.PollUpdate
			if json.Unmarshal(ev.Data, &u) == nil && s.conv.ApplyPollUpdate(u) {
				s.notifyUpdate()
			}
		case realtime.EventTyping:
			var t models.TypingEvent
			if json.Unmarshal(ev.Data, &t) == nil && t.UserID != s.cfg.SelfID && t.DisplayName != "" {
				s.typingIn.Observe(t)
			}
		default:
			// presence and unknown kinds carry nothing the view needs
		}
	}
}

func (s *Session) onNewMessage(data json.RawMessage) {
	var m models.Message
	if json.Unmarshal(data, &m) != nil {
		return
	}
	// Own messages already live in the view as provisional entries resolved
	// by the send acknowledgement; the channel copy is dropped so the send
	// never doubles.
	if m.AuthorID != nil && *m.AuthorID == s.cfg.SelfID {
		return
	}
	if !s.conv.Append(fromModel(m)) {
		return
	}
	s.scroll.OnArrival(false)
	s.notifyUpdate()
}

// Send appends an optimistic entry and posts the message in the background.
// The acknowledgement swaps the entry in place; failure removes it and
// reports through OnSendFailed. Returns the provisional temp ID.
func (s *Session) Send(ctx context.Context, body string, replyTo *uuid.UUID) string {
	if strings.TrimSpace(body) == "" || s.cfg.SelfID == uuid.Nil {
		return ""
	}
	tempID := NewTempID()
	provisional := Message{
		ID:         ProvisionalID(tempID),
		RoomID:     s.cfg.RoomID,
		AuthorID:   s.cfg.SelfID,
		AuthorName: s.cfg.SelfName,
		Body:       body,
		Kind:       models.KindUser,
		ReplyTo:    s.snapshotReply(replyTo),
		Reactions:  []models.Reaction{},
		CreatedAt:  time.Now(),
		Pending:    true,
	}
	s.conv.Append(provisional)
	s.scroll.OnArrival(true)
	s.notifyUpdate()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ack, err := s.api.SendMessage(ctx, s.cfg.RoomID, body, replyTo)
		if err != nil {
			if s.conv.RemoveProvisional(tempID) {
				s.notifyUpdate()
			}
			if s.cfg.OnSendFailed != nil {
				s.cfg.OnSendFailed(tempID, err)
			}
			return
		}
		if s.conv.ResolveProvisional(tempID, *ack) {
			s.notifyUpdate()
		}
	}()
	return tempID
}

// snapshotReply copies the quoted message by value at compose time, so the
// preview shown while the send is in flight matches what the server stores.
func (s *Session) snapshotReply(replyTo *uuid.UUID) *models.ReplySnapshot {
	if replyTo == nil {
		return nil
	}
	for _, m := range s.conv.Messages() {
		if !m.ID.Provisional() && m.ID.Durable() == *replyTo {
			return &models.ReplySnapshot{
				MessageID:  *replyTo,
				Body:       m.Body,
				AuthorName: m.AuthorName,
			}
		}
	}
	return &models.ReplySnapshot{MessageID: *replyTo}
}

// ToggleReaction taps an emoji on a message. The tap lands in the view
// immediately; the server's full collection then overwrites it, and a
// failed request restores the pre-tap state.
func (s *Session) ToggleReaction(ctx context.Context, messageID uuid.UUID, emoji string) error {
	prev, ok := s.conv.ToggleReaction(messageID, models.Reaction{
		UserID:      s.cfg.SelfID,
		Emoji:       emoji,
		DisplayName: s.cfg.SelfName,
	})
	if !ok {
		return fmt.Errorf("message %s not in view", messageID)
	}
	s.notifyUpdate()

	update, err := s.api.ToggleReaction(ctx, messageID, emoji)
	if err != nil {
		s.conv.ApplyReactionUpdate(models.ReactionUpdate{MessageID: messageID, Reactions: prev})
		s.notifyUpdate()
		return err
	}
	if s.conv.ApplyReactionUpdate(*update) {
		s.notifyUpdate()
	}
	return nil
}

// ToggleVote taps a poll option, optimistically like ToggleReaction. On a
// single-select poll the local tap clears sibling votes in the same step,
// so no intermediate double-vote state is ever visible.
func (s *Session) ToggleVote(ctx context.Context, optionID uuid.UUID) error {
	messageID, found := s.conv.FindPollOption(optionID)
	if !found {
		return fmt.Errorf("poll option %s not in view", optionID)
	}
	prev, ok := s.conv.ToggleVote(messageID, optionID, models.Vote{
		UserID:      s.cfg.SelfID,
		DisplayName: s.cfg.SelfName,
	})
	if !ok {
		return fmt.Errorf("poll option %s not in view", optionID)
	}
	s.notifyUpdate()

	update, err := s.api.ToggleVote(ctx, optionID)
	if err != nil {
		s.conv.ApplyPollUpdate(models.PollUpdate{MessageID: messageID, Poll: prev})
		s.notifyUpdate()
		return err
	}
	if s.conv.ApplyPollUpdate(*update) {
		s.notifyUpdate()
	}
	return nil
}

// CreatePoll posts a poll; the carrier message joins the view right away
// and the broadcast copy is deduplicated.
func (s *Session) CreatePoll(ctx context.Context, question string, options []string, multiSelect bool) error {
	msg, err := s.api.CreatePoll(ctx, s.cfg.RoomID, question, options, multiSelect)
	if err != nil {
		return err
	}
	if s.conv.Append(fromModel(*msg)) {
		s.scroll.OnArrival(true)
		s.notifyUpdate()
	}
	return nil
}

// Keystroke reports one local keystroke in the composer; typing signals go
// out at most once per throttle window.
func (s *Session) Keystroke() error {
	return s.typingOut.Keystroke()
}

// Refresh re-fetches history, replacing the view. Used after reconnects.
func (s *Session) Refresh(ctx context.Context) error {
	history, err := s.api.LoadMessages(ctx, s.cfg.RoomID)
	if err != nil {
		return err
	}
	s.conv.Reset(history)
	s.notifyUpdate()
	return nil
}

// RefreshRoster re-fetches the mention roster.
func (s *Session) RefreshRoster(ctx context.Context) error {
	roster, err := s.api.ListMembers(ctx, s.cfg.RoomID)
	if err != nil {
		return err
	}
	s.setRoster(roster)
	return nil
}

func (s *Session) setRoster(roster []models.Member) {
	s.rosterMu.Lock()
	s.roster = roster
	s.rosterMu.Unlock()
	s.mentions.SetRoster(roster)
}

// Roster returns the current mention roster in join order.
func (s *Session) Roster() []models.Member {
	s.rosterMu.RLock()
	defer s.rosterMu.RUnlock()
	out := make([]models.Member, len(s.roster))
	copy(out, s.roster)
	return out
}

// Messages returns a snapshot of the conversation view.
func (s *Session) Messages() []Message { return s.conv.Messages() }

// TypingNames returns the remote participants currently typing.
func (s *Session) TypingNames() []string { return s.typingIn.Active() }

// Scroll exposes the scroll state machine.
func (s *Session) Scroll() *ScrollManager { return s.scroll }

// Mentions exposes the mention composer.
func (s *Session) Mentions() *MentionComposer { return s.mentions }

// Close tears the session down: transport closed, timers cancelled, all
// background work drained. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.transport.Close()
		s.typingOut.Stop()
		s.typingIn.Stop()
		s.wg.Wait()
	})
	return err
}

func (s *Session) notifyUpdate() {
	if s.cfg.OnUpdate != nil {
		s.cfg.OnUpdate()
	}
}
