package avatars

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bloomcircle/backend/internal/auth"
	"github.com/bloomcircle/backend/internal/middleware"
	"github.com/bloomcircle/backend/pkg/response"
	"github.com/bloomcircle/backend/pkg/storage"
)

// PresignRequest is the body for POST /avatars/presign.
type PresignRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
}

// ConfirmRequest is the body for POST /avatars/confirm, sent after the
// client finishes the direct S3 upload.
type ConfirmRequest struct {
	Filename string `json:"filename" binding:"required"`
}

// Handler handles avatar upload and serving endpoints.
type Handler struct {
	s3       *storage.S3
	userRepo *auth.Repository
	logger   *zap.Logger
}

// NewHandler creates an avatars handler. s3 may be nil when avatar storage
// is not configured; endpoints then report the feature unavailable.
func NewHandler(s3 *storage.S3, userRepo *auth.Repository, logger *zap.Logger) *Handler {
	return &Handler{s3: s3, userRepo: userRepo, logger: logger}
}

// Presign handles POST /avatars/presign. Returns a pre-signed PUT URL for
// the caller's avatar object.
func (h *Handler) Presign(c *gin.Context) {
	if h.s3 == nil {
		response.NotFound(c, "avatar storage not configured")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !storage.ValidateAvatarFileType(req.ContentType, req.Filename) {
		response.BadRequest(c, "unsupported avatar file type")
		return
	}

	key := storage.AvatarKey(userID.String(), req.Filename)
	contentType := req.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(req.Filename)
	}
	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), h.s3.AvatarsBucket(), key, contentType, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("avatar presign failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to create upload url")
		return
	}
	response.OK(c, gin.H{
		"upload_url":   url,
		"key":          key,
		"content_type": contentType,
		"max_bytes":    storage.MaxAvatarFileSize,
	})
}

// Confirm handles POST /avatars/confirm. Records the uploaded object as the
// caller's avatar URL.
func (h *Handler) Confirm(c *gin.Context) {
	if h.s3 == nil {
		response.NotFound(c, "avatar storage not configured")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !storage.ValidateAvatarFileType("", req.Filename) {
		response.BadRequest(c, "unsupported avatar file type")
		return
	}

	avatarURL := fmt.Sprintf("/avatars/%s", userID)
	if err := h.userRepo.UpdateAvatar(c.Request.Context(), userID, avatarURL, req.Filename); err != nil {
		h.logger.Error("avatar confirm failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to update avatar")
		return
	}
	response.OK(c, gin.H{"avatar_url": avatarURL})
}

// Serve handles GET /avatars/:user_id, streaming the image from S3.
func (h *Handler) Serve(c *gin.Context) {
	if h.s3 == nil {
		response.NotFound(c, "avatar storage not configured")
		return
	}
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	user, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if err != nil || user.AvatarFile == "" {
		response.NotFound(c, "avatar not found")
		return
	}

	key := storage.AvatarKey(userID.String(), user.AvatarFile)
	body, contentType, err := h.s3.GetObjectStream(c.Request.Context(), h.s3.AvatarsBucket(), key)
	if err != nil {
		response.NotFound(c, "avatar not found")
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = storage.ContentTypeForFilename(user.AvatarFile)
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=300")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, body)
}
