package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, zap.NewNop()), mr
}

func TestEnqueueDequeueMention(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	payload := MentionPayload{
		RoomID:          uuid.New(),
		MessageID:       uuid.New(),
		MentionedUserID: uuid.New(),
		AuthorName:      "Alice",
		Excerpt:         "hey @Bob",
	}
	require.NoError(t, q.EnqueueMention(ctx, payload))

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	job, key, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, QueueMentions, key)
	assert.Equal(t, JobTypeMention, job.Type)
	assert.Zero(t, job.Attempt)

	var got MentionPayload
	require.NoError(t, json.Unmarshal(job.Payload, &got))
	assert.Equal(t, payload, got)
}

func TestRetryReenqueues(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	job := &Job{ID: uuid.New().String(), Type: JobTypeMention, Payload: json.RawMessage(`{}`)}
	require.NoError(t, q.Retry(ctx, job))
	assert.Equal(t, 1, job.Attempt)

	got, err := mr.List(QueueMentions)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRetryMovesToDLQAfterMaxAttempts(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	job := &Job{ID: uuid.New().String(), Type: JobTypeMention, Payload: json.RawMessage(`{}`), Attempt: MaxRetries - 1}
	require.NoError(t, q.Retry(ctx, job))

	dlq, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	assert.Len(t, dlq, 1)

	_, err = mr.List(QueueMentions)
	assert.Error(t, err) // key never created
}
