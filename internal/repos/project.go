package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/types"
)

// ErrStaleProject is returned by UpdateGuarded when the optimistic lock
// version moved underneath the caller.
var ErrStaleProject = errors.New("project was modified concurrently")

type ProjectRepo interface {
	Create(ctx context.Context, tx *gorm.DB, project *types.Project) error
	GetByID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.Project, error)
	ListByMember(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Project, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Project, error)

	// UpdateGuarded applies updates only when the stored lock_version still
	// matches project.LockVersion, bumping it by one. Returns ErrStaleProject
	// on a lost race.
	UpdateGuarded(ctx context.Context, tx *gorm.DB, project *types.Project, updates map[string]interface{}) error

	AddMember(ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID) error
	IsMember(ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID) (bool, error)
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	repoLog := baseLog.With("repo", "ProjectRepo")
	return &projectRepo{db: db, log: repoLog}
}

func (r *projectRepo) Create(ctx context.Context, tx *gorm.DB, project *types.Project) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(project).Error
}

func (r *projectRepo) GetByID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var project types.Project
	err := transaction.WithContext(ctx).
		Preload("Members").
		Where("id = ?", projectID).
		First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepo) ListByMember(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Project
	err := transaction.WithContext(ctx).
		Joins("JOIN project_member pm ON pm.project_id = project.id").
		Where("pm.user_id = ?", userID).
		Order("project.created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *projectRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Project
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *projectRepo) UpdateGuarded(ctx context.Context, tx *gorm.DB, project *types.Project, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["lock_version"] = project.LockVersion + 1
	updates["updated_at"] = time.Now()

	res := transaction.WithContext(ctx).
		Model(&types.Project{}).
		Where("id = ? AND lock_version = ?", project.ID, project.LockVersion).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleProject
	}
	project.LockVersion++
	return nil
}

func (r *projectRepo) AddMember(ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	member := types.ProjectMember{ProjectID: projectID, UserID: userID}
	// Set union: a member already present is not an error.
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&member).Error
}

func (r *projectRepo) RemoveMember(ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&types.ProjectMember{}).Error
}

func (r *projectRepo) IsMember(ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
