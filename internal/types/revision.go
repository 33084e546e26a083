package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RevisionStatus string

const (
	RevisionActive   RevisionStatus = "active"
	RevisionArchived RevisionStatus = "archived"
)

// Revision is one uploaded cut of a project's video. Versions are 1-based and
// contiguous per project; the composite unique index is what makes concurrent
// uploads collide instead of duplicating a version.
type Revision struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_revision_project_version,priority:1;index" json:"project_id"`
	Version   int       `gorm:"column:version;not null;uniqueIndex:idx_revision_project_version,priority:2" json:"version"`

	VideoURL    string         `gorm:"column:video_url;not null" json:"video_url"`
	StorageKey  string         `gorm:"column:storage_key" json:"storage_key,omitempty"`
	Description string         `gorm:"column:description" json:"description"`
	Status      RevisionStatus `gorm:"column:status;not null;default:'active'" json:"status"`

	DownloadCount int       `gorm:"column:download_count;not null;default:0" json:"download_count"`
	UploadedBy    uuid.UUID `gorm:"type:uuid;column:uploaded_by;not null" json:"uploaded_by"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Revision) TableName() string { return "revision" }

func (r *Revision) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
