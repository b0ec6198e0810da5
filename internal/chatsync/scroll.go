package chatsync

import (
	"sync"
	"time"
)

// ScrollManager tracks whether the viewport is pinned to the newest message
// and how many arrivals the reader has not seen. It is headless: the UI
// reports position changes in and reads the pinned state and unseen count
// out.
//
// Pinning a viewport to the bottom programmatically makes the UI emit
// position churn of its own; position reports inside a short guard window
// after AutoScrolled are ignored so that churn cannot unpin the view.
type ScrollManager struct {
	mu         sync.Mutex
	atBottom   bool
	unseen     int
	guardUntil time.Time
	now        func() time.Time
}

// GuardWindow is how long position reports are ignored after a programmatic
// scroll to bottom.
const GuardWindow = 200 * time.Millisecond

// NewScrollManager creates a manager with the view pinned to the bottom.
func NewScrollManager() *ScrollManager {
	return &ScrollManager{atBottom: true, now: time.Now}
}

// SetPosition reports whether the viewport currently sits at the bottom.
// Returning to the bottom clears the unseen count.
func (s *ScrollManager) SetPosition(atBottom bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !atBottom && s.now().Before(s.guardUntil) {
		return
	}
	s.atBottom = atBottom
	if atBottom {
		s.unseen = 0
	}
}

// OnArrival records one appended message. own marks messages this session
// sent; sending always re-pins the view. Returns true when the UI should
// scroll to the new message.
func (s *ScrollManager) OnArrival(own bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if own {
		s.atBottom = true
		s.unseen = 0
		return true
	}
	if s.atBottom {
		return true
	}
	s.unseen++
	return false
}

// AutoScrolled reports that the UI performed a programmatic scroll to the
// bottom, opening the guard window.
func (s *ScrollManager) AutoScrolled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atBottom = true
	s.unseen = 0
	s.guardUntil = s.now().Add(GuardWindow)
}

// AtBottom reports whether the view is pinned to the newest message.
func (s *ScrollManager) AtBottom() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.atBottom
}

// Unseen returns how many messages arrived while scrolled up. The UI shows
// the new-messages indicator whenever this is non-zero.
func (s *ScrollManager) Unseen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unseen
}
