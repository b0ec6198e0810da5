package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPubSub(t *testing.T) *RedisPubSub {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisPubSub(client, zap.NewNop())
}

func TestPubSubRoundTrip(t *testing.T) {
	ps := newTestPubSub(t)
	roomID := uuid.New()

	type received struct {
		event   string
		payload string
	}
	got := make(chan received, 1)

	cancel, err := ps.SubscribeRoom(roomID, func(event string, payload []byte) {
		got <- received{event: event, payload: string(payload)}
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.PublishRoomEvent(roomID, EventNewMessage, []byte(`{"body":"hi"}`)))

	select {
	case r := <-got:
		assert.Equal(t, EventNewMessage, r.event)
		assert.JSONEq(t, `{"body":"hi"}`, r.payload)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPubSubRoomIsolation(t *testing.T) {
	ps := newTestPubSub(t)
	roomA, roomB := uuid.New(), uuid.New()

	got := make(chan string, 4)
	cancel, err := ps.SubscribeRoom(roomA, func(event string, _ []byte) {
		got <- event
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.PublishRoomEvent(roomB, EventTyping, []byte(`{}`)))
	require.NoError(t, ps.PublishRoomEvent(roomA, EventPollUpdate, []byte(`{}`)))

	select {
	case ev := <-got:
		// only the roomA event arrives
		assert.Equal(t, EventPollUpdate, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case ev := <-got:
		t.Fatalf("unexpected extra event: %s", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPubSubCancelStopsDelivery(t *testing.T) {
	ps := newTestPubSub(t)
	roomID := uuid.New()

	got := make(chan string, 4)
	cancel, err := ps.SubscribeRoom(roomID, func(event string, _ []byte) {
		got <- event
	})
	require.NoError(t, err)

	cancel()
	time.Sleep(50 * time.Millisecond)
	_ = ps.PublishRoomEvent(roomID, EventNewMessage, []byte(`{}`))

	select {
	case ev := <-got:
		t.Fatalf("event delivered after cancel: %s", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPubSubDropsMalformedPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ps := NewRedisPubSub(client, zap.NewNop())
	roomID := uuid.New()

	got := make(chan string, 2)
	cancel, err := ps.SubscribeRoom(roomID, func(event string, _ []byte) {
		got <- event
	})
	require.NoError(t, err)
	defer cancel()

	// raw garbage on the channel is dropped, the next good event still lands
	require.NoError(t, client.Publish(context.Background(), channelPrefix+roomID.String(), "not json").Err())
	require.NoError(t, ps.PublishRoomEvent(roomID, EventReactionUpdate, []byte(`{}`)))

	select {
	case ev := <-got:
		assert.Equal(t, EventReactionUpdate, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}
