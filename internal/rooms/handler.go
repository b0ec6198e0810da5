package rooms

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bloomcircle/backend/internal/middleware"
	"github.com/bloomcircle/backend/internal/models"
	"github.com/bloomcircle/backend/pkg/response"
)

// CreateRequest is the body for POST /rooms.
type CreateRequest struct {
	Name string `json:"name" binding:"required"`
}

// Handler handles room HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a rooms handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Create handles POST /rooms.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	room := &models.Room{Name: req.Name, CreatedBy: userID}
	if err := h.repo.Create(c.Request.Context(), room); err != nil {
		response.Internal(c, "failed to create room")
		return
	}
	response.Created(c, room)
}

// List handles GET /rooms (rooms the caller belongs to).
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list rooms")
		return
	}
	response.OK(c, gin.H{"rooms": list})
}

// Join handles POST /rooms/:id/join.
func (h *Handler) Join(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if _, err := h.repo.GetByID(c.Request.Context(), roomID); err != nil {
		response.NotFound(c, "room not found")
		return
	}
	if err := h.repo.Join(c.Request.Context(), roomID, userID); err != nil {
		response.Internal(c, "failed to join room")
		return
	}
	response.OK(c, gin.H{"room_id": roomID, "joined": true})
}

// ListMembers handles GET /rooms/:id/members (the mention roster).
func (h *Handler) ListMembers(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	ok, err := h.repo.IsMember(c.Request.Context(), roomID, userID)
	if err != nil || !ok {
		response.Forbidden(c, "not a room member")
		return
	}
	members, err := h.repo.ListMembers(c.Request.Context(), roomID)
	if err != nil {
		response.Internal(c, "failed to list members")
		return
	}
	response.OK(c, gin.H{"members": members})
}

// RequireMembership returns a middleware that rejects callers who are not
// members of the room in the :id path param.
func (h *Handler) RequireMembership() gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid room id")
			c.Abort()
			return
		}
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		ok, err := h.repo.IsMember(c.Request.Context(), roomID, userID)
		if err != nil || !ok {
			response.Forbidden(c, "not a room member")
			c.Abort()
			return
		}
		c.Next()
	}
}
