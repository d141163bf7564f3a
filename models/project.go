package models

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "ACTIVE"
	ProjectArchived ProjectStatus = "ARCHIVED"
)

type Project struct {
	Model
	OrganizationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"organization_id"`
	Name           string          `gorm:"not null;size:100" json:"name"`
	StartDate      time.Time       `gorm:"not null;type:date" json:"start_date"`
	EndDate        time.Time       `gorm:"not null;type:date" json:"end_date"`
	Status         ProjectStatus   `gorm:"not null;size:20;default:ACTIVE" json:"status"`
	Members        []ProjectMember `gorm:"foreignKey:ProjectID" json:"members,omitempty"`
}
