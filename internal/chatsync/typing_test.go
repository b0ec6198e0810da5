package chatsync

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloomcircle/backend/internal/models"
)

func TestTypingThrottleFirstKeystrokeWins(t *testing.T) {
	var sent int
	var mu sync.Mutex
	th := NewTypingThrottle(40*time.Millisecond, func() error {
		mu.Lock()
		sent++
		mu.Unlock()
		return nil
	})
	defer th.Stop()

	for i := 0; i < 10; i++ {
		require.NoError(t, th.Keystroke())
	}
	mu.Lock()
	assert.Equal(t, 1, sent)
	mu.Unlock()

	// window elapses, the next keystroke sends again
	require.Eventually(t, func() bool {
		if th.Keystroke() != nil {
			return false
		}
		mu.Lock()
		defer mu.Unlock()
		return sent == 2
	}, time.Second, 10*time.Millisecond)
}

func TestTypingTrackerExpiryAndOrder(t *testing.T) {
	tr := NewTypingTracker(60*time.Millisecond, nil)
	defer tr.Stop()

	alice := models.TypingEvent{UserID: uuid.New(), DisplayName: "Alice"}
	bob := models.TypingEvent{UserID: uuid.New(), DisplayName: "Bob"}

	tr.Observe(alice)
	tr.Observe(bob)
	tr.Observe(alice) // restart, must not duplicate or reorder
	assert.Equal(t, []string{"Alice", "Bob"}, tr.Active())

	require.Eventually(t, func() bool {
		return len(tr.Active()) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestTypingTrackerRestartExtends(t *testing.T) {
	tr := NewTypingTracker(80*time.Millisecond, nil)
	defer tr.Stop()

	ev := models.TypingEvent{UserID: uuid.New(), DisplayName: "Alice"}
	tr.Observe(ev)
	time.Sleep(50 * time.Millisecond)
	tr.Observe(ev)
	time.Sleep(50 * time.Millisecond)
	// 100ms after the first event but only 50ms after the restart
	assert.Equal(t, []string{"Alice"}, tr.Active())
}

func TestTypingTrackerChangeCallback(t *testing.T) {
	var mu sync.Mutex
	var last []string
	tr := NewTypingTracker(50*time.Millisecond, func(names []string) {
		mu.Lock()
		last = names
		mu.Unlock()
	})
	defer tr.Stop()

	tr.Observe(models.TypingEvent{UserID: uuid.New(), DisplayName: "Alice"})
	mu.Lock()
	assert.Equal(t, []string{"Alice"}, last)
	mu.Unlock()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last) == 0
	}, time.Second, 10*time.Millisecond)
}
