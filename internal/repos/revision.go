package repos

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/types"
)

type RevisionRepo interface {
	// CreateNextVersion inserts rev with version = MAX(version)+1 for its
	// project, computed and written in a single statement so concurrent
	// uploads cannot observe the same predecessor. A collision on the
	// (project_id, version) unique index is retried once.
	CreateNextVersion(ctx context.Context, tx *gorm.DB, rev *types.Revision) error

	GetByID(ctx context.Context, tx *gorm.DB, revisionID uuid.UUID) (*types.Revision, error)
	GetByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Revision, error)

	// IncrementDownloadCount bumps download_count only while it is below
	// limit. Returns the caller's own post-increment count and ok=false
	// when the guard rejected the increment.
	IncrementDownloadCount(ctx context.Context, tx *gorm.DB, revisionID uuid.UUID, limit int) (count int, ok bool, err error)

	// Archive flips status to archived and appends marker to the
	// description, exactly once. flipped=false means someone else already
	// archived it.
	Archive(ctx context.Context, tx *gorm.DB, revisionID uuid.UUID, marker string) (flipped bool, err error)
}

type revisionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRevisionRepo(db *gorm.DB, baseLog *logger.Logger) RevisionRepo {
	repoLog := baseLog.With("repo", "RevisionRepo")
	return &revisionRepo{db: db, log: repoLog}
}

func (r *revisionRepo) CreateNextVersion(ctx context.Context, tx *gorm.DB, rev *types.Revision) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if rev.ID == uuid.Nil {
		rev.ID = uuid.New()
	}
	if rev.Status == "" {
		rev.Status = types.RevisionActive
	}
	now := time.Now()

	insert := func() error {
		return transaction.WithContext(ctx).Exec(`
			INSERT INTO revision
				(id, project_id, version, video_url, storage_key, description, status, download_count, uploaded_by, created_at, updated_at)
			SELECT ?, ?, COALESCE(MAX(version), 0) + 1, ?, ?, ?, ?, 0, ?, ?, ?
			FROM revision WHERE project_id = ?`,
			rev.ID, rev.ProjectID, rev.VideoURL, rev.StorageKey, rev.Description,
			string(rev.Status), rev.UploadedBy, now, now, rev.ProjectID,
		).Error
	}

	err := insert()
	if err != nil && isUniqueViolation(err) {
		r.log.Debug("Revision version collision, retrying", "project_id", rev.ProjectID)
		err = insert()
	}
	if err != nil {
		return err
	}

	return transaction.WithContext(ctx).
		Where("id = ?", rev.ID).
		First(rev).Error
}

func (r *revisionRepo) GetByID(ctx context.Context, tx *gorm.DB, revisionID uuid.UUID) (*types.Revision, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var rev types.Revision
	err := transaction.WithContext(ctx).
		Where("id = ?", revisionID).
		First(&rev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (r *revisionRepo) GetByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Revision, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Revision
	if err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("version DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *revisionRepo) IncrementDownloadCount(ctx context.Context, tx *gorm.DB, revisionID uuid.UUID, limit int) (int, bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	// RETURNING ties the reported count to this statement's increment; a
	// separate read could pick up a later caller's bump.
	var count int
	res := transaction.WithContext(ctx).Raw(`
		UPDATE revision
		SET download_count = download_count + 1, updated_at = ?
		WHERE id = ? AND download_count < ?
		RETURNING download_count`,
		time.Now(), revisionID, limit,
	).Scan(&count)
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}
	return count, true, nil
}

func (r *revisionRepo) Archive(ctx context.Context, tx *gorm.DB, revisionID uuid.UUID, marker string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).Exec(`
		UPDATE revision
		SET status = ?, description = description || ?, updated_at = ?
		WHERE id = ? AND status <> ?`,
		string(types.RevisionArchived), marker, time.Now(),
		revisionID, string(types.RevisionArchived),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
