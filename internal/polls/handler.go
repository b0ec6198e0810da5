package polls

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bloomcircle/backend/internal/middleware"
	"github.com/bloomcircle/backend/internal/models"
	"github.com/bloomcircle/backend/internal/realtime"
	"github.com/bloomcircle/backend/internal/rooms"
	"github.com/bloomcircle/backend/pkg/response"
)

// CreateRequest is the body for POST /rooms/:id/polls.
type CreateRequest struct {
	Question    string   `json:"question" binding:"required"`
	Options     []string `json:"options" binding:"required,min=2,max=10,dive,required"`
	MultiSelect bool     `json:"multi_select"`
}

// VoteRequest is the body for POST /polls/options/:id/vote. The tap is a
// toggle; no body fields are needed beyond the option in the path.
type VoteRequest struct{}

// Handler handles poll HTTP endpoints.
type Handler struct {
	repo      *Repository
	roomsRepo *rooms.Repository
	hub       *realtime.Hub
	logger    *zap.Logger
}

// NewHandler creates a polls handler.
func NewHandler(repo *Repository, roomsRepo *rooms.Repository, hub *realtime.Hub, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, roomsRepo: roomsRepo, hub: hub, logger: logger}
}

// Create handles POST /rooms/:id/polls. The poll arrives in the room as a
// regular message carrying a poll, broadcast as new_message.
func (h *Handler) Create(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	msg, err := h.repo.Create(c.Request.Context(), roomID, userID, req.Question, req.Options, req.MultiSelect)
	if err != nil {
		h.logger.Error("poll create failed", zap.Error(err), zap.String("room_id", roomID.String()))
		response.Internal(c, "failed to create poll")
		return
	}

	h.hub.PublishToRoom(roomID, realtime.EventNewMessage, msg)
	response.Created(c, msg)
}

// Vote handles POST /polls/options/:id/vote. The response and the broadcast
// both carry the complete post-toggle poll so receivers overwrite rather
// than merge.
func (h *Handler) Vote(c *gin.Context) {
	optionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid option id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	roomID, err := h.repo.RoomOfOption(c.Request.Context(), optionID)
	if err != nil {
		if errors.Is(err, ErrOptionNotFound) {
			response.NotFound(c, "poll option not found")
			return
		}
		response.Internal(c, "failed to resolve poll")
		return
	}
	ok, err := h.roomsRepo.IsMember(c.Request.Context(), roomID, userID)
	if err != nil || !ok {
		response.Forbidden(c, "not a room member")
		return
	}

	messageID, poll, err := h.repo.ToggleVote(c.Request.Context(), optionID, userID)
	if err != nil {
		if errors.Is(err, ErrOptionNotFound) {
			response.NotFound(c, "poll option not found")
			return
		}
		h.logger.Error("vote toggle failed", zap.Error(err), zap.String("option_id", optionID.String()))
		response.Internal(c, "failed to record vote")
		return
	}

	update := models.PollUpdate{MessageID: messageID, Poll: poll}
	h.hub.PublishToRoom(roomID, realtime.EventPollUpdate, update)
	response.OK(c, update)
}
