package models

type Organization struct {
	Model
	Name     string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Users    []User    `gorm:"foreignKey:OrganizationID" json:"users,omitempty"`
	Projects []Project `gorm:"foreignKey:OrganizationID" json:"projects,omitempty"`
}
