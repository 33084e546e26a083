package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/repos"
	"github.com/reelpost/reelpost-backend/internal/types"
)

// AssignmentService drives the editor-assignment state machine. Re-assignment
// is last-writer-wins: a newer offer supersedes a pending one and revokes the
// superseded editor's access.
type AssignmentService interface {
	Assign(ctx context.Context, projectID, editorID uuid.UUID, caller types.Identity) error
	Respond(ctx context.Context, projectID uuid.UUID, caller types.Identity, decision types.AssignmentStatus) error
}

type assignmentService struct {
	db            *gorm.DB
	log           *logger.Logger
	projectRepo   repos.ProjectRepo
	userRepo      repos.UserRepo
	notifier      ProjectNotifier
	assignmentTTL time.Duration
}

func NewAssignmentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	projectRepo repos.ProjectRepo,
	userRepo repos.UserRepo,
	notifier ProjectNotifier,
	assignmentTTL time.Duration,
) AssignmentService {
	serviceLog := baseLog.With("service", "AssignmentService")
	return &assignmentService{
		db:            db,
		log:           serviceLog,
		projectRepo:   projectRepo,
		userRepo:      userRepo,
		notifier:      notifier,
		assignmentTTL: assignmentTTL,
	}
}

func (as *assignmentService) Assign(ctx context.Context, projectID, editorID uuid.UUID, caller types.Identity) error {
	if !caller.CanManageProjects() {
		return apierr.Unauthorized("only admins and project managers may assign editors")
	}

	project, err := as.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return apierr.From(err)
	}
	if project == nil {
		return apierr.NotFound("project %s not found", projectID)
	}

	editor, err := as.userRepo.GetByID(ctx, nil, editorID)
	if err != nil {
		return apierr.From(err)
	}
	if editor == nil {
		return apierr.NotFound("editor %s not found", editorID)
	}
	if editor.Role != types.RoleEditor {
		return apierr.Unauthorized("user %s is not an editor", editorID)
	}

	newStatus, err := transition(project.Status, eventAssign)
	if err != nil {
		return err
	}

	previousEditor := project.AssignedEditorID

	now := time.Now()
	expires := now.Add(as.assignmentTTL)
	pending := types.AssignmentPending

	txErr := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if uErr := as.projectRepo.UpdateGuarded(ctx, tx, project, map[string]interface{}{
			"assigned_editor_id":    editorID,
			"assignment_status":     string(pending),
			"assignment_at":         now,
			"assignment_expires_at": expires,
			"status":                string(newStatus),
		}); uErr != nil {
			return uErr
		}
		// Overwriting a prior offer invalidates the access the old
		// assignment granted.
		if previousEditor != nil && *previousEditor != editorID {
			if rErr := as.projectRepo.RemoveMember(ctx, tx, projectID, *previousEditor); rErr != nil {
				return rErr
			}
		}
		return as.projectRepo.AddMember(ctx, tx, projectID, editorID)
	})
	if txErr != nil {
		return as.wrapConflict(txErr, "assign")
	}

	project.AssignedEditorID = &editorID
	project.AssignmentStatus = &pending
	project.AssignmentAt = &now
	project.AssignmentExpiresAt = &expires
	project.Status = newStatus

	as.log.Info("Editor assigned", "project_id", projectID, "editor_id", editorID)
	as.notifier.AssignmentOffered(project, editorID)
	return nil
}

func (as *assignmentService) Respond(ctx context.Context, projectID uuid.UUID, caller types.Identity, decision types.AssignmentStatus) error {
	if decision != types.AssignmentAccepted && decision != types.AssignmentRejected {
		return apierr.InvalidState("decision must be accepted or rejected, got %q", decision)
	}

	project, err := as.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return apierr.From(err)
	}
	if project == nil {
		return apierr.NotFound("project %s not found", projectID)
	}

	if caller.Kind != types.IdentityUser || project.AssignedEditorID == nil || *project.AssignedEditorID != caller.UserID {
		return apierr.Unauthorized("only the assigned editor may respond to an assignment")
	}
	if project.AssignmentStatus == nil || *project.AssignmentStatus != types.AssignmentPending {
		return apierr.InvalidState("assignment is not pending")
	}

	// An offer past its validity window counts as implicitly rejected; the
	// rejection is persisted so the project reads consistently afterwards.
	if project.AssignmentExpiresAt != nil && time.Now().After(*project.AssignmentExpiresAt) {
		rejected := types.AssignmentRejected
		if uErr := as.projectRepo.UpdateGuarded(ctx, nil, project, map[string]interface{}{
			"assignment_status": string(rejected),
		}); uErr != nil {
			return as.wrapConflict(uErr, "expire assignment")
		}
		project.AssignmentStatus = &rejected
		as.notifier.AssignmentResponded(project, rejected)
		return apierr.InvalidState("assignment offer expired at %s", project.AssignmentExpiresAt.Format(time.RFC3339))
	}

	ev := eventAccept
	if decision == types.AssignmentRejected {
		ev = eventReject
	}
	newStatus, err := transition(project.Status, ev)
	if err != nil {
		return err
	}

	if uErr := as.projectRepo.UpdateGuarded(ctx, nil, project, map[string]interface{}{
		"assignment_status": string(decision),
		"status":            string(newStatus),
	}); uErr != nil {
		return as.wrapConflict(uErr, "respond")
	}

	project.AssignmentStatus = &decision
	project.Status = newStatus

	as.log.Info("Assignment response recorded",
		"project_id", projectID,
		"editor_id", caller.UserID,
		"decision", decision,
	)
	as.notifier.AssignmentResponded(project, decision)
	return nil
}

func (as *assignmentService) wrapConflict(err error, op string) error {
	if errors.Is(err, repos.ErrStaleProject) {
		return apierr.Infrastructure(fmt.Errorf("%s: %w", op, err))
	}
	return apierr.From(err)
}
