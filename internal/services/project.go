package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/repos"
	"github.com/reelpost/reelpost-backend/internal/types"
)

type ProjectService interface {
	CreateProject(ctx context.Context, owner types.Identity, name string, totalCost int64) (*types.Project, error)
	GetProject(ctx context.Context, projectID uuid.UUID, caller types.Identity) (*types.Project, error)
	ListProjects(ctx context.Context, caller types.Identity) ([]*types.Project, error)
}

type projectService struct {
	db          *gorm.DB
	log         *logger.Logger
	projectRepo repos.ProjectRepo
}

func NewProjectService(db *gorm.DB, baseLog *logger.Logger, projectRepo repos.ProjectRepo) ProjectService {
	serviceLog := baseLog.With("service", "ProjectService")
	return &projectService{db: db, log: serviceLog, projectRepo: projectRepo}
}

func (ps *projectService) CreateProject(ctx context.Context, owner types.Identity, name string, totalCost int64) (*types.Project, error) {
	if owner.Kind != types.IdentityUser {
		return nil, apierr.Unauthorized("only authenticated users may create projects")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apierr.InvalidState("project name is required")
	}

	project := &types.Project{
		OwnerID:       owner.UserID,
		Name:          name,
		Status:        types.ProjectPendingPayment,
		PaymentStatus: types.PaymentPending,
		TotalCost:     totalCost,
	}

	txErr := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ps.projectRepo.Create(ctx, tx, project); err != nil {
			return err
		}
		return ps.projectRepo.AddMember(ctx, tx, project.ID, owner.UserID)
	})
	if txErr != nil {
		return nil, apierr.From(txErr)
	}

	ps.log.Info("Project created", "project_id", project.ID, "owner_id", owner.UserID)
	return project, nil
}

func (ps *projectService) GetProject(ctx context.Context, projectID uuid.UUID, caller types.Identity) (*types.Project, error) {
	project, err := ps.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, apierr.From(err)
	}
	if project == nil {
		return nil, apierr.NotFound("project %s not found", projectID)
	}

	if !ps.canView(ctx, project, caller) {
		return nil, apierr.Unauthorized("no access to project %s", projectID)
	}
	return project, nil
}

func (ps *projectService) ListProjects(ctx context.Context, caller types.Identity) ([]*types.Project, error) {
	if caller.Kind != types.IdentityUser {
		return nil, apierr.Unauthorized("authentication required")
	}
	if caller.CanManageProjects() || caller.Role == types.RoleSales {
		projects, err := ps.projectRepo.ListAll(ctx, nil)
		if err != nil {
			return nil, apierr.From(err)
		}
		return projects, nil
	}
	projects, err := ps.projectRepo.ListByMember(ctx, nil, caller.UserID)
	if err != nil {
		return nil, apierr.From(err)
	}
	return projects, nil
}

func (ps *projectService) canView(ctx context.Context, project *types.Project, caller types.Identity) bool {
	if caller.Kind != types.IdentityUser {
		return false
	}
	if caller.CanManageProjects() || caller.Role == types.RoleSales {
		return true
	}
	if project.OwnerID == caller.UserID {
		return true
	}
	member, err := ps.projectRepo.IsMember(ctx, nil, project.ID, caller.UserID)
	if err != nil {
		ps.log.Warn("Membership check failed", "error", err, "project_id", project.ID)
		return false
	}
	return member
}
