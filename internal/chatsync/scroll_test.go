package chatsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScrollStartsPinned(t *testing.T) {
	s := NewScrollManager()
	assert.True(t, s.AtBottom())
	assert.Zero(t, s.Unseen())
}

func TestScrollArrivalsAccumulateWhileUp(t *testing.T) {
	s := NewScrollManager()
	s.SetPosition(false)

	assert.False(t, s.OnArrival(false))
	assert.False(t, s.OnArrival(false))
	assert.Equal(t, 2, s.Unseen())

	s.SetPosition(true)
	assert.Zero(t, s.Unseen())
}

func TestScrollOwnSendRepins(t *testing.T) {
	s := NewScrollManager()
	s.SetPosition(false)
	s.OnArrival(false)

	assert.True(t, s.OnArrival(true))
	assert.True(t, s.AtBottom())
	assert.Zero(t, s.Unseen())
}

func TestScrollArrivalAtBottomFollows(t *testing.T) {
	s := NewScrollManager()
	assert.True(t, s.OnArrival(false))
	assert.Zero(t, s.Unseen())
}

func TestScrollGuardWindowSwallowsChurn(t *testing.T) {
	s := NewScrollManager()
	now := time.Now()
	s.now = func() time.Time { return now }

	s.SetPosition(false)
	s.AutoScrolled()

	// layout churn right after the programmatic scroll reports "not at
	// bottom"; the guard window keeps the view pinned
	now = now.Add(GuardWindow / 2)
	s.SetPosition(false)
	assert.True(t, s.AtBottom())

	// a real scroll after the window unpins
	now = now.Add(GuardWindow)
	s.SetPosition(false)
	assert.False(t, s.AtBottom())
}
