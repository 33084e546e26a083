package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/repos"
	"github.com/reelpost/reelpost-backend/internal/types"
)

// RevisionService maintains the monotonic revision ledger. Revisions are
// never deleted; exhausting the download quota archives them instead.
type RevisionService interface {
	AddRevision(ctx context.Context, projectID uuid.UUID, videoURL string, uploaderID uuid.UUID, description string) (*types.Revision, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*types.Revision, error)
}

type revisionService struct {
	db            *gorm.DB
	log           *logger.Logger
	projectRepo   repos.ProjectRepo
	revisionRepo  repos.RevisionRepo
	bucketService BucketService
	notifier      ProjectNotifier
}

func NewRevisionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	projectRepo repos.ProjectRepo,
	revisionRepo repos.RevisionRepo,
	bucketService BucketService,
	notifier ProjectNotifier,
) RevisionService {
	serviceLog := baseLog.With("service", "RevisionService")
	return &revisionService{
		db:            db,
		log:           serviceLog,
		projectRepo:   projectRepo,
		revisionRepo:  revisionRepo,
		bucketService: bucketService,
		notifier:      notifier,
	}
}

func (rs *revisionService) AddRevision(ctx context.Context, projectID uuid.UUID, videoURL string, uploaderID uuid.UUID, description string) (*types.Revision, error) {
	project, err := rs.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, apierr.From(err)
	}
	if project == nil {
		return nil, apierr.NotFound("project %s not found", projectID)
	}

	rev := &types.Revision{
		ProjectID:   projectID,
		VideoURL:    videoURL,
		Description: description,
		Status:      types.RevisionActive,
		UploadedBy:  uploaderID,
	}
	if rs.bucketService != nil {
		if key, ok := rs.bucketService.ObjectKeyFromURL(videoURL); ok {
			rev.StorageKey = key
		}
	}

	txErr := rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return rs.revisionRepo.CreateNextVersion(ctx, tx, rev)
	})
	if txErr != nil {
		return nil, apierr.From(txErr)
	}

	rs.log.Info("Revision uploaded",
		"project_id", projectID,
		"revision_id", rev.ID,
		"version", rev.Version,
	)
	rs.notifier.RevisionUploaded(project, rev)
	return rev, nil
}

func (rs *revisionService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*types.Revision, error) {
	project, err := rs.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, apierr.From(err)
	}
	if project == nil {
		return nil, apierr.NotFound("project %s not found", projectID)
	}
	revs, err := rs.revisionRepo.GetByProjectID(ctx, nil, projectID)
	if err != nil {
		return nil, apierr.From(err)
	}
	return revs, nil
}
