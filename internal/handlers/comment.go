package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/requestdata"
	"github.com/reelpost/reelpost-backend/internal/services"
)

type CommentHandler struct {
	log            *logger.Logger
	commentService services.CommentService
}

func NewCommentHandler(log *logger.Logger, commentService services.CommentService) *CommentHandler {
	return &CommentHandler{
		log:            log.With("handler", "CommentHandler"),
		commentService: commentService,
	}
}

// POST /api/revisions/:id/comments
func (h *CommentHandler) Add(c *gin.Context) {
	revisionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Timestamp   float64  `json:"timestamp"`
		Content     string   `json:"content"`
		Attachments []string `json:"attachments"`
		// Client-generated id echoed back on the realtime feed so the
		// optimistic entry can be reconciled or retracted.
		ProvisionalID string `json:"provisional_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidState, err)
		return
	}
	identity := requestdata.GetIdentity(c.Request.Context())
	comment, err := h.commentService.AddComment(c.Request.Context(), revisionID, req.Timestamp, req.Content, req.Attachments, identity, req.ProvisionalID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, comment)
}

// GET /api/revisions/:id/comments
func (h *CommentHandler) List(c *gin.Context) {
	revisionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	comments, err := h.commentService.ListByRevision(c.Request.Context(), revisionID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, comments)
}

// POST /api/comments/:id/replies
func (h *CommentHandler) Reply(c *gin.Context) {
	commentID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content     string   `json:"content"`
		Attachments []string `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidState, err)
		return
	}
	identity := requestdata.GetIdentity(c.Request.Context())
	reply, err := h.commentService.AddReply(c.Request.Context(), commentID, req.Content, req.Attachments, identity)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, reply)
}

// POST /api/comments/:id/resolve
func (h *CommentHandler) ToggleResolve(c *gin.Context) {
	commentID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.commentService.ToggleResolve(c.Request.Context(), commentID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}
