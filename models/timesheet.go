package models

import (
	"time"

	"github.com/google/uuid"
)

type TimesheetStatus string

const (
	StatusDraft     TimesheetStatus = "DRAFT"
	StatusSubmitted TimesheetStatus = "SUBMITTED"
	StatusApproved  TimesheetStatus = "APPROVED"
)

// Timesheet holds one user's hours on one project. There is exactly one per
// (project, user) pair.
type Timesheet struct {
	Model
	ProjectID   uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_timesheet_owner" json:"project_id"`
	UserID      uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_timesheet_owner;index" json:"user_id"`
	User        *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status      TimesheetStatus  `gorm:"not null;size:20;index" json:"status"`
	SubmittedAt *time.Time       `json:"submitted_at"`
	ApprovedAt  *time.Time       `json:"approved_at"`
	ApprovedBy  *uuid.UUID       `gorm:"type:uuid" json:"approved_by"`
	Entries     []TimesheetEntry `gorm:"foreignKey:TimesheetID" json:"entries,omitempty"`
}

type TimesheetEntry struct {
	Model
	TimesheetID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_entry_day" json:"timesheet_id"`
	Date        time.Time `gorm:"not null;type:date;uniqueIndex:idx_entry_day;index" json:"date"`
	Hours       float64   `gorm:"not null" json:"hours"`
}
