package chatsync

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bloomcircle/backend/internal/models"
)

// TypingThrottle rate-limits outbound typing signals. The first keystroke
// sends; further keystrokes inside the window are swallowed until the
// window elapses.
type TypingThrottle struct {
	mu     sync.Mutex
	window time.Duration
	send   func() error
	armed  bool
	timer  *time.Timer
}

// NewTypingThrottle creates a throttle around a send function.
func NewTypingThrottle(window time.Duration, send func() error) *TypingThrottle {
	return &TypingThrottle{window: window, send: send}
}

// Keystroke reports one local keystroke. Returns the send error for the
// keystroke that actually emitted; swallowed keystrokes return nil.
func (t *TypingThrottle) Keystroke() error {
	t.mu.Lock()
	if t.armed {
		t.mu.Unlock()
		return nil
	}
	t.armed = true
	t.timer = time.AfterFunc(t.window, func() {
		t.mu.Lock()
		t.armed = false
		t.mu.Unlock()
	})
	t.mu.Unlock()
	return t.send()
}

// Stop cancels the pending window reset.
func (t *TypingThrottle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.armed = false
}

// TypingTracker holds which remote participants are currently typing. Each
// inbound event restarts that participant's expiry timer; when it fires the
// participant drops out of the active set.
type TypingTracker struct {
	mu       sync.Mutex
	expiry   time.Duration
	onChange func([]string)
	active   map[uuid.UUID]*typingEntry
	order    []uuid.UUID
	stopped  bool
}

type typingEntry struct {
	name  string
	timer *time.Timer
}

// NewTypingTracker creates a tracker. onChange receives the active display
// names, in first-seen order, after every change; it may be nil.
func NewTypingTracker(expiry time.Duration, onChange func([]string)) *TypingTracker {
	return &TypingTracker{
		expiry:   expiry,
		onChange: onChange,
		active:   make(map[uuid.UUID]*typingEntry),
	}
}

// Observe records one inbound typing event.
func (t *TypingTracker) Observe(ev models.TypingEvent) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	entry, ok := t.active[ev.UserID]
	if ok {
		entry.timer.Stop()
		entry.timer = t.expireAfter(ev.UserID)
		t.mu.Unlock()
		return
	}
	t.active[ev.UserID] = &typingEntry{name: ev.DisplayName, timer: t.expireAfter(ev.UserID)}
	t.order = append(t.order, ev.UserID)
	names := t.namesLocked()
	onChange := t.onChange
	t.mu.Unlock()
	if onChange != nil {
		onChange(names)
	}
}

func (t *TypingTracker) expireAfter(userID uuid.UUID) *time.Timer {
	return time.AfterFunc(t.expiry, func() {
		t.mu.Lock()
		if t.stopped {
			t.mu.Unlock()
			return
		}
		if _, ok := t.active[userID]; !ok {
			t.mu.Unlock()
			return
		}
		delete(t.active, userID)
		for i, id := range t.order {
			if id == userID {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
		names := t.namesLocked()
		onChange := t.onChange
		t.mu.Unlock()
		if onChange != nil {
			onChange(names)
		}
	})
}

// Active returns the display names currently typing, in first-seen order.
func (t *TypingTracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.namesLocked()
}

func (t *TypingTracker) namesLocked() []string {
	names := make([]string, 0, len(t.order))
	for _, id := range t.order {
		names = append(names, t.active[id].name)
	}
	return names
}

// Stop cancels all expiry timers. The tracker is unusable afterwards.
func (t *TypingTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for _, e := range t.active {
		e.timer.Stop()
	}
	t.active = make(map[uuid.UUID]*typingEntry)
	t.order = nil
}
