package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bloomcircle/backend/internal/models"
	"github.com/bloomcircle/backend/internal/notifications"
	"github.com/bloomcircle/backend/pkg/queue"
)

// MentionNotifier processes mention jobs: each job turns into a persisted
// notification row for the mentioned user.
type MentionNotifier struct {
	repo   *notifications.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewMentionNotifier creates a mention notification processor.
func NewMentionNotifier(repo *notifications.Repository, q *queue.Queue, logger *zap.Logger) *MentionNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MentionNotifier{repo: repo, queue: q, logger: logger}
}

// Process executes one mention job.
func (p *MentionNotifier) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeMention {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.MentionPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	n := models.Notification{
		UserID:     payload.MentionedUserID,
		RoomID:     payload.RoomID,
		MessageID:  payload.MessageID,
		AuthorName: payload.AuthorName,
		Excerpt:    payload.Excerpt,
	}
	if err := p.repo.Create(ctx, &n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	p.logger.Info("mention notification created",
		zap.String("notification_id", n.ID.String()),
		zap.String("user_id", payload.MentionedUserID.String()),
		zap.String("message_id", payload.MessageID.String()))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *MentionNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("mention worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
