package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/repos"
	"github.com/reelpost/reelpost-backend/internal/types"
	"github.com/reelpost/reelpost-backend/internal/utils"
)

const archiveMarker = " [download limit reached; archived]"

type DownloadResult struct {
	Count       int    `json:"count"`
	Remaining   int    `json:"remaining"`
	DownloadURL string `json:"download_url"`
}

// DownloadService is the download gate: the payment/unlock policy decides
// whether a caller may reach the quota policy at all, the quota policy
// decides whether this particular download may still happen.
type DownloadService interface {
	RegisterDownload(ctx context.Context, projectID, revisionID uuid.UUID, caller types.Identity) (*DownloadResult, error)
	RequestDownloadUnlock(ctx context.Context, projectID uuid.UUID, caller types.Identity) error
	UnlockProjectDownloads(ctx context.Context, projectID uuid.UUID, caller types.Identity) error
}

type downloadService struct {
	db            *gorm.DB
	log           *logger.Logger
	projectRepo   repos.ProjectRepo
	revisionRepo  repos.RevisionRepo
	bucketService BucketService
	notifier      ProjectNotifier
	limit         int
	urlTTL        time.Duration
}

func NewDownloadService(
	db *gorm.DB,
	baseLog *logger.Logger,
	projectRepo repos.ProjectRepo,
	revisionRepo repos.RevisionRepo,
	bucketService BucketService,
	notifier ProjectNotifier,
	limit int,
	urlTTL time.Duration,
) DownloadService {
	serviceLog := baseLog.With("service", "DownloadService")
	return &downloadService{
		db:            db,
		log:           serviceLog,
		projectRepo:   projectRepo,
		revisionRepo:  revisionRepo,
		bucketService: bucketService,
		notifier:      notifier,
		limit:         limit,
		urlTTL:        urlTTL,
	}
}

func (ds *downloadService) RegisterDownload(ctx context.Context, projectID, revisionID uuid.UUID, caller types.Identity) (*DownloadResult, error) {
	project, err := ds.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, apierr.From(err)
	}
	if project == nil {
		return nil, apierr.NotFound("project %s not found", projectID)
	}

	// Payment/unlock policy. Internal roles bypass it entirely.
	if !caller.Internal() {
		if caller.Kind != types.IdentityUser {
			return nil, apierr.Unauthorized("guests may not download revisions")
		}
		if project.OwnerID != caller.UserID {
			member, mErr := ds.projectRepo.IsMember(ctx, nil, projectID, caller.UserID)
			if mErr != nil {
				return nil, apierr.From(mErr)
			}
			if !member {
				return nil, apierr.Unauthorized("user %s has no access to project %s", caller.UserID, projectID)
			}
		}
		if !project.DownloadsPermitted() {
			return nil, apierr.Unauthorized("downloads are locked until the project is fully paid or unlocked")
		}
	}

	rev, err := ds.revisionRepo.GetByID(ctx, nil, revisionID)
	if err != nil {
		return nil, apierr.From(err)
	}
	if rev == nil || rev.ProjectID != projectID {
		return nil, apierr.NotFound("revision %s not found for project %s", revisionID, projectID)
	}
	if rev.Status == types.RevisionArchived {
		return nil, apierr.LimitExceeded("revision %s is archived", revisionID)
	}

	// Quota policy: the increment is guarded server-side so two callers at
	// limit-1 cannot both slip through.
	count, ok, err := ds.revisionRepo.IncrementDownloadCount(ctx, nil, revisionID, ds.limit)
	if err != nil {
		return nil, apierr.From(err)
	}
	if !ok {
		flipped, aErr := ds.revisionRepo.Archive(ctx, nil, revisionID, archiveMarker)
		if aErr != nil {
			ds.log.Error("Failed to archive exhausted revision", "error", aErr, "revision_id", revisionID)
		}
		if flipped {
			ds.log.Info("Revision archived after exhausting download quota", "revision_id", revisionID)
			ds.notifier.RevisionArchived(projectID, revisionID)
		}
		return nil, apierr.LimitExceeded("download limit of %d reached for revision %s", ds.limit, revisionID)
	}

	downloadURL, err := ds.downloadURL(ctx, project, rev)
	if err != nil {
		return nil, err
	}

	ds.log.Info("Download registered",
		"project_id", projectID,
		"revision_id", revisionID,
		"count", count,
		"caller", caller.Key(),
	)
	return &DownloadResult{
		Count:       count,
		Remaining:   ds.limit - count,
		DownloadURL: downloadURL,
	}, nil
}

// downloadURL prefers a bounded-lifetime signed URL; when signing fails it
// degrades to the stored URL rather than failing the download outright.
func (ds *downloadService) downloadURL(ctx context.Context, project *types.Project, rev *types.Revision) (string, error) {
	filename := ds.attachmentFilename(project, rev)

	key := rev.StorageKey
	if key == "" && ds.bucketService != nil {
		if k, ok := ds.bucketService.ObjectKeyFromURL(rev.VideoURL); ok {
			key = k
		}
	}

	if key != "" && ds.bucketService != nil {
		signed, sErr := ds.bucketService.SignedDownloadURL(ctx, key, filename, ds.urlTTL)
		if sErr == nil {
			return signed, nil
		}
		ds.log.Warn("Signed URL generation failed, falling back to stored URL",
			"error", sErr,
			"revision_id", rev.ID,
		)
	}

	if rev.VideoURL == "" {
		return "", apierr.Infrastructure(errors.New("no downloadable URL available for revision"))
	}
	return rev.VideoURL, nil
}

func (ds *downloadService) attachmentFilename(project *types.Project, rev *types.Revision) string {
	ext := ".mp4"
	if u, err := url.Parse(rev.VideoURL); err == nil {
		if e := path.Ext(u.Path); e != "" {
			ext = e
		}
	}
	return fmt.Sprintf("%s_v%d%s", utils.SanitizeFilename(project.Name), rev.Version, ext)
}

func (ds *downloadService) RequestDownloadUnlock(ctx context.Context, projectID uuid.UUID, caller types.Identity) error {
	project, err := ds.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return apierr.From(err)
	}
	if project == nil {
		return apierr.NotFound("project %s not found", projectID)
	}

	if caller.Kind != types.IdentityUser {
		return apierr.Unauthorized("guests may not request an unlock")
	}
	if project.OwnerID != caller.UserID && !caller.Internal() {
		member, mErr := ds.projectRepo.IsMember(ctx, nil, projectID, caller.UserID)
		if mErr != nil {
			return apierr.From(mErr)
		}
		if !member {
			return apierr.Unauthorized("user %s has no access to project %s", caller.UserID, projectID)
		}
	}

	// Idempotent: re-requesting an already requested unlock is harmless.
	if project.DownloadUnlockRequested {
		return nil
	}
	if uErr := ds.projectRepo.UpdateGuarded(ctx, nil, project, map[string]interface{}{
		"download_unlock_requested": true,
	}); uErr != nil {
		if errors.Is(uErr, repos.ErrStaleProject) {
			// Lost race with another requester or an unlock; the request
			// flag is an OR across callers, so the outcome stands.
			return nil
		}
		return apierr.From(uErr)
	}
	project.DownloadUnlockRequested = true

	ds.log.Info("Download unlock requested", "project_id", projectID, "caller", caller.Key())
	ds.notifier.UnlockRequested(project, caller.Key())
	return nil
}

func (ds *downloadService) UnlockProjectDownloads(ctx context.Context, projectID uuid.UUID, caller types.Identity) error {
	if !caller.CanManageProjects() {
		return apierr.Unauthorized("only admins and project managers may unlock downloads")
	}

	project, err := ds.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return apierr.From(err)
	}
	if project == nil {
		return apierr.NotFound("project %s not found", projectID)
	}

	newStatus, err := transition(project.Status, eventComplete)
	if err != nil {
		return err
	}

	notes, err := appendNote(project.Notes, types.ProjectNote{
		Who:  caller.Key(),
		What: "downloads unlocked",
		When: time.Now(),
	})
	if err != nil {
		return apierr.From(err)
	}

	if uErr := ds.projectRepo.UpdateGuarded(ctx, nil, project, map[string]interface{}{
		"payment_status":            string(types.PaymentFullPaid),
		"status":                    string(newStatus),
		"downloads_unlocked":        true,
		"download_unlock_requested": false,
		"notes":                     notes,
	}); uErr != nil {
		return apierr.From(uErr)
	}

	project.PaymentStatus = types.PaymentFullPaid
	project.Status = newStatus
	project.DownloadsUnlocked = true
	project.DownloadUnlockRequested = false
	project.Notes = notes

	ds.log.Info("Project downloads unlocked", "project_id", projectID, "by", caller.Key())
	ds.notifier.ProjectCompleted(project)
	return nil
}

// appendNote grows the append-only audit list; existing entries are never
// rewritten.
func appendNote(raw datatypes.JSON, note types.ProjectNote) (datatypes.JSON, error) {
	var notes []types.ProjectNote
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &notes); err != nil {
			return nil, fmt.Errorf("decode project notes: %w", err)
		}
	}
	notes = append(notes, note)
	out, err := json.Marshal(notes)
	if err != nil {
		return nil, fmt.Errorf("encode project notes: %w", err)
	}
	return datatypes.JSON(out), nil
}
