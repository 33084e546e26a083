package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/requestdata"
	"github.com/reelpost/reelpost-backend/internal/services"
	"github.com/reelpost/reelpost-backend/internal/types"
)

type ProjectHandler struct {
	log               *logger.Logger
	projectService    services.ProjectService
	assignmentService services.AssignmentService
	downloadService   services.DownloadService
}

func NewProjectHandler(
	log *logger.Logger,
	projectService services.ProjectService,
	assignmentService services.AssignmentService,
	downloadService services.DownloadService,
) *ProjectHandler {
	return &ProjectHandler{
		log:               log.With("handler", "ProjectHandler"),
		projectService:    projectService,
		assignmentService: assignmentService,
		downloadService:   downloadService,
	}
}

// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req struct {
		Name      string `json:"name"`
		TotalCost int64  `json:"total_cost"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidState, err)
		return
	}
	caller := requestdata.GetIdentity(c.Request.Context())
	project, err := h.projectService.CreateProject(c.Request.Context(), caller, req.Name, req.TotalCost)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, project)
}

// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	caller := requestdata.GetIdentity(c.Request.Context())
	projects, err := h.projectService.ListProjects(c.Request.Context(), caller)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, projects)
}

// GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	caller := requestdata.GetIdentity(c.Request.Context())
	project, err := h.projectService.GetProject(c.Request.Context(), projectID, caller)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, project)
}

// POST /api/projects/:id/assign
func (h *ProjectHandler) Assign(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		EditorID uuid.UUID `json:"editor_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidState, err)
		return
	}
	caller := requestdata.GetIdentity(c.Request.Context())
	if err := h.assignmentService.Assign(c.Request.Context(), projectID, req.EditorID, caller); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

// POST /api/projects/:id/respond
func (h *ProjectHandler) Respond(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Decision string `json:"decision"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidState, err)
		return
	}
	caller := requestdata.GetIdentity(c.Request.Context())
	if err := h.assignmentService.Respond(c.Request.Context(), projectID, caller, types.AssignmentStatus(req.Decision)); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

// POST /api/projects/:id/request-unlock
func (h *ProjectHandler) RequestUnlock(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	caller := requestdata.GetIdentity(c.Request.Context())
	if err := h.downloadService.RequestDownloadUnlock(c.Request.Context(), projectID, caller); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

// POST /api/projects/:id/unlock
func (h *ProjectHandler) Unlock(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	caller := requestdata.GetIdentity(c.Request.Context())
	if err := h.downloadService.UnlockProjectDownloads(c.Request.Context(), projectID, caller); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidState, err)
		return uuid.Nil, false
	}
	return id, true
}
