package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleApprover Role = "APPROVER"
	RoleEmployee Role = "EMPLOYEE"
)

type User struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	Email          string         `gorm:"uniqueIndex;not null;size:200" json:"email"`
	FullName       string         `gorm:"not null;size:200" json:"full_name"`
	PasswordHash   string         `gorm:"not null" json:"-"`
	Role           Role           `gorm:"not null;size:20" json:"role"`
	IsSuperAdmin   bool           `gorm:"default:false" json:"is_super_admin"`
	OrganizationID uuid.UUID      `gorm:"type:uuid;index" json:"organization_id"`
	Organization   *Organization  `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
