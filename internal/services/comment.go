package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/repos"
	"github.com/reelpost/reelpost-backend/internal/types"
)

// CommentService is the timeline-anchored comment engine. The timestamp is
// an opaque playback anchor in seconds; it is stored verbatim and never
// range-checked here (the player clamps on seek).
type CommentService interface {
	AddComment(ctx context.Context, revisionID uuid.UUID, timestamp float64, content string, attachments []string, identity types.Identity, provisionalID string) (*types.Comment, error)
	AddReply(ctx context.Context, commentID uuid.UUID, content string, attachments []string, identity types.Identity) (*types.CommentReply, error)
	ToggleResolve(ctx context.Context, commentID uuid.UUID) error
	ListByRevision(ctx context.Context, revisionID uuid.UUID) ([]*types.Comment, error)
}

type commentService struct {
	db           *gorm.DB
	log          *logger.Logger
	revisionRepo repos.RevisionRepo
	commentRepo  repos.CommentRepo
	notifier     ProjectNotifier
}

func NewCommentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	revisionRepo repos.RevisionRepo,
	commentRepo repos.CommentRepo,
	notifier ProjectNotifier,
) CommentService {
	serviceLog := baseLog.With("service", "CommentService")
	return &commentService{
		db:           db,
		log:          serviceLog,
		revisionRepo: revisionRepo,
		commentRepo:  commentRepo,
		notifier:     notifier,
	}
}

func (cs *commentService) AddComment(ctx context.Context, revisionID uuid.UUID, timestamp float64, content string, attachments []string, identity types.Identity, provisionalID string) (*types.Comment, error) {
	if err := identity.Validate(); err != nil {
		return nil, apierr.Unauthorized("comment requires an identity: %v", err)
	}

	rev, err := cs.revisionRepo.GetByID(ctx, nil, revisionID)
	if err != nil {
		return nil, apierr.From(err)
	}
	if rev == nil {
		return nil, apierr.NotFound("revision %s not found", revisionID)
	}

	attach, err := encodeAttachments(attachments)
	if err != nil {
		return nil, apierr.From(err)
	}

	comment := &types.Comment{
		ProjectID:   rev.ProjectID,
		RevisionID:  revisionID,
		Timestamp:   timestamp,
		Content:     content,
		Attachments: attach,
		Status:      types.CommentOpen,
	}
	comment.SetAuthor(identity)

	if err := cs.commentRepo.Create(ctx, nil, comment); err != nil {
		return nil, apierr.From(err)
	}

	cs.log.Info("Comment added",
		"revision_id", revisionID,
		"comment_id", comment.ID,
		"timestamp", timestamp,
		"author", identity.Key(),
	)
	cs.notifier.CommentAdded(comment, provisionalID)
	return comment, nil
}

func (cs *commentService) AddReply(ctx context.Context, commentID uuid.UUID, content string, attachments []string, identity types.Identity) (*types.CommentReply, error) {
	if err := identity.Validate(); err != nil {
		return nil, apierr.Unauthorized("reply requires an identity: %v", err)
	}

	comment, err := cs.commentRepo.GetByID(ctx, nil, commentID)
	if err != nil {
		return nil, apierr.From(err)
	}
	if comment == nil {
		return nil, apierr.NotFound("comment %s not found", commentID)
	}

	attach, err := encodeAttachments(attachments)
	if err != nil {
		return nil, apierr.From(err)
	}

	reply := &types.CommentReply{
		CommentID:   commentID,
		Content:     content,
		Attachments: attach,
	}
	reply.SetAuthor(identity)

	if err := cs.commentRepo.AppendReply(ctx, nil, reply); err != nil {
		return nil, apierr.From(err)
	}

	cs.log.Info("Reply appended", "comment_id", commentID, "author", identity.Key())
	cs.notifier.ReplyAdded(comment, reply)
	return reply, nil
}

func (cs *commentService) ToggleResolve(ctx context.Context, commentID uuid.UUID) error {
	found, err := cs.commentRepo.ToggleStatus(ctx, nil, commentID)
	if err != nil {
		return apierr.From(err)
	}
	if !found {
		return apierr.NotFound("comment %s not found", commentID)
	}

	comment, err := cs.commentRepo.GetByID(ctx, nil, commentID)
	if err != nil {
		return apierr.From(err)
	}
	if comment != nil {
		cs.log.Info("Comment status toggled", "comment_id", commentID, "status", comment.Status)
		cs.notifier.CommentResolved(comment, comment.Status)
	}
	return nil
}

func (cs *commentService) ListByRevision(ctx context.Context, revisionID uuid.UUID) ([]*types.Comment, error) {
	rev, err := cs.revisionRepo.GetByID(ctx, nil, revisionID)
	if err != nil {
		return nil, apierr.From(err)
	}
	if rev == nil {
		return nil, apierr.NotFound("revision %s not found", revisionID)
	}
	comments, err := cs.commentRepo.GetByRevisionID(ctx, nil, revisionID)
	if err != nil {
		return nil, apierr.From(err)
	}
	return comments, nil
}

func encodeAttachments(attachments []string) (datatypes.JSON, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	out, err := json.Marshal(attachments)
	if err != nil {
		return nil, fmt.Errorf("encode attachments: %w", err)
	}
	return datatypes.JSON(out), nil
}
