package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/types"
)

type CommentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, comment *types.Comment) error
	GetByID(ctx context.Context, tx *gorm.DB, commentID uuid.UUID) (*types.Comment, error)
	GetByRevisionID(ctx context.Context, tx *gorm.DB, revisionID uuid.UUID) ([]*types.Comment, error)

	// AppendReply is an INSERT on the reply table; concurrent appends to the
	// same comment never overwrite each other.
	AppendReply(ctx context.Context, tx *gorm.DB, reply *types.CommentReply) error

	// ToggleStatus flips open <-> resolved in one statement. found=false
	// means no such comment.
	ToggleStatus(ctx context.Context, tx *gorm.DB, commentID uuid.UUID) (found bool, err error)
}

type commentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCommentRepo(db *gorm.DB, baseLog *logger.Logger) CommentRepo {
	repoLog := baseLog.With("repo", "CommentRepo")
	return &commentRepo{db: db, log: repoLog}
}

func (r *commentRepo) Create(ctx context.Context, tx *gorm.DB, comment *types.Comment) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(comment).Error
}

func (r *commentRepo) GetByID(ctx context.Context, tx *gorm.DB, commentID uuid.UUID) (*types.Comment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var comment types.Comment
	err := transaction.WithContext(ctx).
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("comment_reply.created_at ASC")
		}).
		Where("id = ?", commentID).
		First(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepo) GetByRevisionID(ctx context.Context, tx *gorm.DB, revisionID uuid.UUID) ([]*types.Comment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Comment
	err := transaction.WithContext(ctx).
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("comment_reply.created_at ASC")
		}).
		Where("revision_id = ?", revisionID).
		Order("timestamp ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *commentRepo) AppendReply(ctx context.Context, tx *gorm.DB, reply *types.CommentReply) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(reply).Error
}

func (r *commentRepo) ToggleStatus(ctx context.Context, tx *gorm.DB, commentID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).Exec(`
		UPDATE comment
		SET status = CASE WHEN status = ? THEN ? ELSE ? END, updated_at = ?
		WHERE id = ?`,
		string(types.CommentOpen), string(types.CommentResolved), string(types.CommentOpen),
		time.Now(), commentID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
