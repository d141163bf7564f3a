package models

import (
	"github.com/google/uuid"
)

type MemberRole string

const (
	MemberRoleManager MemberRole = "MANAGER"
	MemberRoleMember  MemberRole = "MEMBER"
)

// ProjectMember places a user on a project's roster. The roster is what the
// project-level approval has to cover in full.
type ProjectMember struct {
	Model
	ProjectID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_project_member" json:"project_id"`
	Project   *Project   `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_project_member;index" json:"user_id"`
	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      MemberRole `gorm:"not null;size:20" json:"role"`
}
