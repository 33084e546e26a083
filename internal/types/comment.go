package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CommentStatus string

const (
	CommentOpen     CommentStatus = "open"
	CommentResolved CommentStatus = "resolved"
)

// Comment is a review annotation anchored to a playback second of a revision.
// The timestamp is stored verbatim; the player clamps it on seek.
type Comment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	RevisionID uuid.UUID `gorm:"type:uuid;not null;index:idx_comment_revision_ts,priority:1" json:"revision_id"`
	Timestamp  float64   `gorm:"column:timestamp;not null;index:idx_comment_revision_ts,priority:2" json:"timestamp"`

	AuthorKind  IdentityKind `gorm:"column:author_kind;not null" json:"author_kind"`
	AuthorID    *uuid.UUID   `gorm:"type:uuid;column:author_id" json:"author_id,omitempty"`
	AuthorRole  UserRole     `gorm:"column:author_role" json:"author_role,omitempty"`
	AuthorKey   string       `gorm:"column:author_key;not null;index" json:"author_key"`
	GuestName   string       `gorm:"column:guest_name" json:"guest_name,omitempty"`
	GuestEmail  string       `gorm:"column:guest_email" json:"guest_email,omitempty"`
	Content     string       `gorm:"column:content;not null" json:"content"`
	Attachments datatypes.JSON `gorm:"column:attachments" json:"attachments,omitempty"`

	Status CommentStatus `gorm:"column:status;not null;default:'open'" json:"status"`

	Replies []CommentReply `gorm:"foreignKey:CommentID" json:"replies,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Comment) TableName() string { return "comment" }

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *Comment) SetAuthor(id Identity) {
	c.AuthorKind = id.Kind
	c.AuthorKey = id.Key()
	if id.Kind == IdentityGuest {
		c.GuestName = id.GuestName
		c.GuestEmail = id.GuestEmail
		return
	}
	uid := id.UserID
	c.AuthorID = &uid
	c.AuthorRole = id.Role
}

// CommentReply is one appended reply. Appending a reply is an INSERT on this
// table, so two simultaneous replies both survive.
type CommentReply struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CommentID uuid.UUID `gorm:"type:uuid;not null;index" json:"comment_id"`

	AuthorKind  IdentityKind   `gorm:"column:author_kind;not null" json:"author_kind"`
	AuthorID    *uuid.UUID     `gorm:"type:uuid;column:author_id" json:"author_id,omitempty"`
	AuthorRole  UserRole       `gorm:"column:author_role" json:"author_role,omitempty"`
	AuthorKey   string         `gorm:"column:author_key;not null" json:"author_key"`
	GuestName   string         `gorm:"column:guest_name" json:"guest_name,omitempty"`
	GuestEmail  string         `gorm:"column:guest_email" json:"guest_email,omitempty"`
	Content     string         `gorm:"column:content;not null" json:"content"`
	Attachments datatypes.JSON `gorm:"column:attachments" json:"attachments,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (CommentReply) TableName() string { return "comment_reply" }

func (r *CommentReply) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *CommentReply) SetAuthor(id Identity) {
	r.AuthorKind = id.Kind
	r.AuthorKey = id.Key()
	if id.Kind == IdentityGuest {
		r.GuestName = id.GuestName
		r.GuestEmail = id.GuestEmail
		return
	}
	uid := id.UserID
	r.AuthorID = &uid
	r.AuthorRole = id.Role
}
