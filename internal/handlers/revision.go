package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/requestdata"
	"github.com/reelpost/reelpost-backend/internal/services"
	"github.com/reelpost/reelpost-backend/internal/types"
)

type RevisionHandler struct {
	log             *logger.Logger
	revisionService services.RevisionService
	downloadService services.DownloadService
}

func NewRevisionHandler(
	log *logger.Logger,
	revisionService services.RevisionService,
	downloadService services.DownloadService,
) *RevisionHandler {
	return &RevisionHandler{
		log:             log.With("handler", "RevisionHandler"),
		revisionService: revisionService,
		downloadService: downloadService,
	}
}

// POST /api/projects/:id/revisions
func (h *RevisionHandler) Upload(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		VideoURL    string `json:"video_url"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidState, err)
		return
	}
	caller := requestdata.GetIdentity(c.Request.Context())
	if caller.Kind != types.IdentityUser {
		RespondError(c, http.StatusForbidden, apierr.CodeUnauthorized, errors.New("only authenticated users may upload revisions"))
		return
	}
	rev, err := h.revisionService.AddRevision(c.Request.Context(), projectID, req.VideoURL, caller.UserID, req.Description)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, rev)
}

// GET /api/projects/:id/revisions
func (h *RevisionHandler) List(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	revs, err := h.revisionService.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, revs)
}

// POST /api/projects/:id/revisions/:revisionID/download
func (h *RevisionHandler) Download(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	revisionID, ok := pathUUID(c, "revisionID")
	if !ok {
		return
	}
	caller := requestdata.GetIdentity(c.Request.Context())
	result, err := h.downloadService.RegisterDownload(c.Request.Context(), projectID, revisionID, caller)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, result)
}
