package reactions

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bloomcircle/backend/internal/chat"
	"github.com/bloomcircle/backend/internal/middleware"
	"github.com/bloomcircle/backend/internal/models"
	"github.com/bloomcircle/backend/internal/realtime"
	"github.com/bloomcircle/backend/internal/rooms"
	"github.com/bloomcircle/backend/pkg/response"
)

// ToggleRequest is the body for POST /messages/:id/reactions.
type ToggleRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// Handler handles reaction HTTP endpoints.
type Handler struct {
	repo      *Repository
	chatRepo  *chat.Repository
	roomsRepo *rooms.Repository
	hub       *realtime.Hub
	logger    *zap.Logger
}

// NewHandler creates a reactions handler.
func NewHandler(repo *Repository, chatRepo *chat.Repository, roomsRepo *rooms.Repository, hub *realtime.Hub, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, chatRepo: chatRepo, roomsRepo: roomsRepo, hub: hub, logger: logger}
}

// Toggle handles POST /messages/:id/reactions. The response and the
// broadcast both carry the complete post-toggle collection so receivers
// overwrite rather than merge.
func (h *Handler) Toggle(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid message id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	roomID, err := h.chatRepo.RoomOf(c.Request.Context(), messageID)
	if err != nil {
		response.NotFound(c, "message not found")
		return
	}
	ok, err := h.roomsRepo.IsMember(c.Request.Context(), roomID, userID)
	if err != nil || !ok {
		response.Forbidden(c, "not a room member")
		return
	}

	list, err := h.repo.Toggle(c.Request.Context(), messageID, userID, req.Emoji)
	if err != nil {
		h.logger.Error("reaction toggle failed", zap.Error(err), zap.String("message_id", messageID.String()))
		response.Internal(c, "failed to toggle reaction")
		return
	}

	update := models.ReactionUpdate{MessageID: messageID, Reactions: list}
	h.hub.PublishToRoom(roomID, realtime.EventReactionUpdate, update)
	response.OK(c, update)
}
