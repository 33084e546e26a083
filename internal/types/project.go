package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectPendingPayment    ProjectStatus = "pending_payment"
	ProjectPendingAssignment ProjectStatus = "pending_assignment"
	ProjectActive            ProjectStatus = "active"
	ProjectInReview          ProjectStatus = "in_review"
	ProjectApproved          ProjectStatus = "approved"
	ProjectCompleted         ProjectStatus = "completed"
	ProjectArchived          ProjectStatus = "archived"
)

type AssignmentStatus string

const (
	AssignmentPending  AssignmentStatus = "pending"
	AssignmentAccepted AssignmentStatus = "accepted"
	AssignmentRejected AssignmentStatus = "rejected"
)

type PaymentStatus string

const (
	PaymentPending        PaymentStatus = "pending_payment"
	PaymentInitialPartial PaymentStatus = "pending_initial_payment"
	PaymentFullPaid       PaymentStatus = "full_paid"
)

// ProjectNote is one entry of the append-only audit trail kept on the
// project (unlock grants, payment captures).
type ProjectNote struct {
	Who  string    `json:"who"`
	What string    `json:"what"`
	When time.Time `json:"when"`
}

type Project struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name    string    `gorm:"column:name;not null" json:"name"`

	Status ProjectStatus `gorm:"column:status;not null;default:'pending_payment'" json:"status"`

	AssignedEditorID    *uuid.UUID        `gorm:"type:uuid;column:assigned_editor_id" json:"assigned_editor_id,omitempty"`
	AssignmentStatus    *AssignmentStatus `gorm:"column:assignment_status" json:"assignment_status,omitempty"`
	AssignmentAt        *time.Time        `gorm:"column:assignment_at" json:"assignment_at,omitempty"`
	AssignmentExpiresAt *time.Time        `gorm:"column:assignment_expires_at" json:"assignment_expires_at,omitempty"`

	PaymentStatus           PaymentStatus  `gorm:"column:payment_status;not null;default:'pending_payment'" json:"payment_status"`
	TotalCost               int64          `gorm:"column:total_cost;not null;default:0" json:"total_cost"`
	AmountPaid              int64          `gorm:"column:amount_paid;not null;default:0" json:"amount_paid"`
	DownloadsUnlocked       bool           `gorm:"column:downloads_unlocked;not null;default:false" json:"downloads_unlocked"`
	DownloadUnlockRequested bool           `gorm:"column:download_unlock_requested;not null;default:false" json:"download_unlock_requested"`
	Notes                   datatypes.JSON `gorm:"column:notes" json:"notes,omitempty"`

	// Optimistic-concurrency token: every guarded update requires the version
	// it read and bumps it by one.
	LockVersion int `gorm:"column:lock_version;not null;default:0" json:"lock_version"`

	Members []ProjectMember `gorm:"foreignKey:ProjectID" json:"members,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Project) TableName() string { return "project" }

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// DownloadsPermitted reports whether a client-side caller has cleared the
// payment gate. Internal roles never consult this.
func (p *Project) DownloadsPermitted() bool {
	return p.PaymentStatus == PaymentFullPaid || p.DownloadsUnlocked
}

// ProjectMember is one row of the project membership set. Membership changes
// are INSERT/DELETE on this table, never a rewrite of a serialized array.
type ProjectMember struct {
	ProjectID uuid.UUID `gorm:"type:uuid;primaryKey" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ProjectMember) TableName() string { return "project_member" }
