// Package identity carries the authenticated caller into every service call.
package identity

import (
	"github.com/google/uuid"

	"timeledger/models"
)

type Identity struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Role           models.Role
	IsSuperAdmin   bool
}

func FromUser(u *models.User) Identity {
	return Identity{
		UserID:         u.ID,
		OrganizationID: u.OrganizationID,
		Role:           u.Role,
		IsSuperAdmin:   u.IsSuperAdmin,
	}
}

// CanAccessOrganization reports whether the caller may act inside orgID.
func (i Identity) CanAccessOrganization(orgID uuid.UUID) bool {
	return i.IsSuperAdmin || i.OrganizationID == orgID
}

func (i Identity) IsAdmin() bool {
	return i.IsSuperAdmin || i.Role == models.RoleAdmin
}

func (i Identity) CanApprove() bool {
	return i.IsAdmin() || i.Role == models.RoleApprover
}

// CanActFor reports whether the caller may edit or submit userID's
// timesheets.
func (i Identity) CanActFor(userID uuid.UUID) bool {
	return i.IsSuperAdmin || i.UserID == userID
}
