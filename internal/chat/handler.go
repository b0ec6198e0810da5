package chat

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bloomcircle/backend/internal/middleware"
	"github.com/bloomcircle/backend/internal/realtime"
	"github.com/bloomcircle/backend/internal/rooms"
	"github.com/bloomcircle/backend/pkg/queue"
	"github.com/bloomcircle/backend/pkg/response"
)

const excerptLimit = 80

// SendRequest is the body for POST /rooms/:id/messages.
type SendRequest struct {
	Body    string     `json:"body" binding:"required"`
	ReplyTo *uuid.UUID `json:"reply_to,omitempty"`
}

// Handler handles chat HTTP endpoints.
type Handler struct {
	repo         *Repository
	roomsRepo    *rooms.Repository
	hub          *realtime.Hub
	queue        *queue.Queue
	logger       *zap.Logger
	historyLimit int
}

// NewHandler creates a chat handler. queue may be nil when mention fan-out
// is disabled.
func NewHandler(repo *Repository, roomsRepo *rooms.Repository, hub *realtime.Hub, q *queue.Queue, logger *zap.Logger, historyLimit int) *Handler {
	return &Handler{
		repo:         repo,
		roomsRepo:    roomsRepo,
		hub:          hub,
		queue:        q,
		logger:       logger,
		historyLimit: historyLimit,
	}
}

// List handles GET /rooms/:id/messages. Returns the recent history in
// chronological order with reactions and polls attached.
func (h *Handler) List(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	list, err := h.repo.ListByRoom(c.Request.Context(), roomID, h.historyLimit)
	if err != nil {
		h.logger.Error("history fetch failed", zap.Error(err), zap.String("room_id", roomID.String()))
		response.Internal(c, "failed to load messages")
		return
	}
	response.OK(c, gin.H{"messages": list})
}

// Send handles POST /rooms/:id/messages. The durable message is returned to
// the sender and broadcast to the room; mention notification jobs are
// enqueued for every roster member named in the body.
func (h *Handler) Send(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		response.BadRequest(c, "message body is empty")
		return
	}

	msg, err := h.repo.CreateUserMessage(c.Request.Context(), roomID, userID, body, req.ReplyTo)
	if err != nil {
		if errors.Is(err, ErrReplyTargetNotFound) {
			response.BadRequest(c, "reply target not found")
			return
		}
		h.logger.Error("message insert failed", zap.Error(err), zap.String("room_id", roomID.String()))
		response.Internal(c, "failed to send message")
		return
	}

	h.hub.PublishToRoom(roomID, realtime.EventNewMessage, msg)
	h.fanOutMentions(c, roomID, msg.ID, userID, msg.AuthorName, body)

	response.Created(c, msg)
}

func (h *Handler) fanOutMentions(c *gin.Context, roomID, messageID, authorID uuid.UUID, authorName, body string) {
	if h.queue == nil {
		return
	}
	roster, err := h.roomsRepo.ListMembers(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Warn("mention scan skipped", zap.Error(err), zap.String("room_id", roomID.String()))
		return
	}
	for _, m := range ScanMentions(body, roster, authorID) {
		err := h.queue.EnqueueMention(c.Request.Context(), queue.MentionPayload{
			RoomID:          roomID,
			MessageID:       messageID,
			MentionedUserID: m.ID,
			AuthorName:      authorName,
			Excerpt:         Excerpt(body, excerptLimit),
		})
		if err != nil {
			h.logger.Warn("mention enqueue failed", zap.Error(err),
				zap.String("mentioned_user_id", m.ID.String()))
		}
	}
}
